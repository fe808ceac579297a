package z3950

import "fmt"

// Well-known object identifiers.
var (
	OIDMARC21     = []int{1, 2, 840, 10003, 5, 10}
	OIDAttrSetBib1 = []int{1, 2, 840, 10003, 3, 1}
)

// PDU context tag numbers, matching the Z39.50 data model.
const (
	TagInitRequest     = 20
	TagInitResponse    = 21
	TagSearchRequest   = 22
	TagSearchResponse  = 23
	TagPresentRequest  = 24
	TagPresentResponse = 25
)

// Inner field tags used by the PDUs below, per the Z39.50 ASN.1
// module these PDUs implement.
const (
	fInitRefID       = 2
	fInitProtoVer    = 3
	fInitOptions     = 4
	fInitPrefMsgSize = 5
	fInitExcRecSize  = 6
	fInitResult      = 12
	fInitImplID      = 110
	fInitImplName    = 111
	fInitImplVersion = 112

	fSearchRefID           = 2
	fSearchSmallSetUpper   = 13
	fSearchLargeSetLower   = 14
	fSearchMediumSetPres   = 15
	fSearchReplaceInd      = 16
	fSearchResultSetName   = 17
	fSearchDatabaseNames   = 18
	fSearchQuery           = 21
	fSearchPrefRecSyntax   = 104

	fSearchRespResultCount   = 23
	fSearchRespNumReturned   = 24
	fSearchRespNextPos       = 25
	fSearchRespSearchStatus  = 22
	fSearchRespResultSetStat = 26
	fSearchRespPresentStat   = 27
	fSearchRespRecords       = 28

	fPresentRefID       = 2
	fPresentResultSet   = 13
	fPresentStart       = 14
	fPresentNumRequest  = 15
	fPresentRecSyntax   = 104

	fPresentRespNumReturned = 24
	fPresentRespNextPos     = 25
	fPresentRespStatus      = 27
	fPresentRespRecords     = 28
)

// InitializeRequest negotiates protocol version, options, and message
// size bounds for the session.
type InitializeRequest struct {
	ReferenceID           []byte
	ProtocolVersion       []bool // 3 bits: version 1/2/3
	Options               []bool // 16-bit option mask
	PreferredMessageSize  uint32
	ExceptionalRecordSize uint32
	ImplementationID      string
	ImplementationName    string
	ImplementationVersion string
}

// Encode renders the request as a context-tagged BER SEQUENCE.
func (r InitializeRequest) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fInitRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fInitProtoVer, false), encodeBitString(r.ProtocolVersion))...)
	content = append(content, encodeTLV(contextTag(fInitOptions, false), encodeBitString(r.Options))...)
	content = append(content, encodeTLV(contextTag(fInitPrefMsgSize, false), encodeInteger(int64(r.PreferredMessageSize)))...)
	content = append(content, encodeTLV(contextTag(fInitExcRecSize, false), encodeInteger(int64(r.ExceptionalRecordSize)))...)
	if r.ImplementationID != "" {
		content = append(content, encodeTLV(contextTag(fInitImplID, false), []byte(r.ImplementationID))...)
	}
	if r.ImplementationName != "" {
		content = append(content, encodeTLV(contextTag(fInitImplName, false), []byte(r.ImplementationName))...)
	}
	if r.ImplementationVersion != "" {
		content = append(content, encodeTLV(contextTag(fInitImplVersion, false), []byte(r.ImplementationVersion))...)
	}
	return encodeTLV(contextTag(TagInitRequest, true), content)
}

// DecodeInitializeRequest parses data at a caller-determined offset.
// Returns ErrIncomplete if data is truncated.
func DecodeInitializeRequest(data []byte) (InitializeRequest, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return InitializeRequest{}, 0, err
	}
	if tag.Number != TagInitRequest {
		return InitializeRequest{}, 0, fmt.Errorf("z3950: expected InitializeRequest tag %d, got %d", TagInitRequest, tag.Number)
	}

	var r InitializeRequest
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return InitializeRequest{}, 0, err
		}
		switch t.Number {
		case fInitRefID:
			r.ReferenceID = v
		case fInitProtoVer:
			r.ProtocolVersion = decodeBitString(v)
		case fInitOptions:
			r.Options = decodeBitString(v)
		case fInitPrefMsgSize:
			r.PreferredMessageSize = uint32(decodeInteger(v))
		case fInitExcRecSize:
			r.ExceptionalRecordSize = uint32(decodeInteger(v))
		case fInitImplID:
			r.ImplementationID = string(v)
		case fInitImplName:
			r.ImplementationName = string(v)
		case fInitImplVersion:
			r.ImplementationVersion = string(v)
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// InitializeResponse is the canned response to an InitializeRequest.
type InitializeResponse struct {
	ReferenceID           []byte
	ProtocolVersion       []bool
	Options               []bool
	PreferredMessageSize  uint32
	ExceptionalRecordSize uint32
	Result                bool
	ImplementationID      string
	ImplementationName    string
	ImplementationVersion string
}

func (r InitializeResponse) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fInitRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fInitProtoVer, false), encodeBitString(r.ProtocolVersion))...)
	content = append(content, encodeTLV(contextTag(fInitOptions, false), encodeBitString(r.Options))...)
	content = append(content, encodeTLV(contextTag(fInitPrefMsgSize, false), encodeInteger(int64(r.PreferredMessageSize)))...)
	content = append(content, encodeTLV(contextTag(fInitExcRecSize, false), encodeInteger(int64(r.ExceptionalRecordSize)))...)
	content = append(content, encodeTLV(contextTag(fInitResult, false), encodeBool(r.Result))...)
	if r.ImplementationID != "" {
		content = append(content, encodeTLV(contextTag(fInitImplID, false), []byte(r.ImplementationID))...)
	}
	if r.ImplementationName != "" {
		content = append(content, encodeTLV(contextTag(fInitImplName, false), []byte(r.ImplementationName))...)
	}
	if r.ImplementationVersion != "" {
		content = append(content, encodeTLV(contextTag(fInitImplVersion, false), []byte(r.ImplementationVersion))...)
	}
	return encodeTLV(contextTag(TagInitResponse, true), content)
}

func DecodeInitializeResponse(data []byte) (InitializeResponse, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return InitializeResponse{}, 0, err
	}
	if tag.Number != TagInitResponse {
		return InitializeResponse{}, 0, fmt.Errorf("z3950: expected InitializeResponse tag %d, got %d", TagInitResponse, tag.Number)
	}

	var r InitializeResponse
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return InitializeResponse{}, 0, err
		}
		switch t.Number {
		case fInitRefID:
			r.ReferenceID = v
		case fInitProtoVer:
			r.ProtocolVersion = decodeBitString(v)
		case fInitOptions:
			r.Options = decodeBitString(v)
		case fInitPrefMsgSize:
			r.PreferredMessageSize = uint32(decodeInteger(v))
		case fInitExcRecSize:
			r.ExceptionalRecordSize = uint32(decodeInteger(v))
		case fInitResult:
			r.Result = decodeBool(v)
		case fInitImplID:
			r.ImplementationID = string(v)
		case fInitImplName:
			r.ImplementationName = string(v)
		case fInitImplVersion:
			r.ImplementationVersion = string(v)
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// RPNQuery is a simplified type-1 query: one attributes+term operand
// against the bib-1 attribute set. Full RPN boolean-tree support
// (AND/OR/NOT operand trees) is not implemented here; a
// single attribute/term pair covers the common ti=/au=/kw= lookups
// OpenSRF's Z39.50 front end issues (see DESIGN.md Open Questions).
type RPNQuery struct {
	AttributeSet  []int
	AttributeType uint32
	AttributeValue uint32
	Term          string
}

func (q RPNQuery) encode() []byte {
	attrSet := q.AttributeSet
	if attrSet == nil {
		attrSet = OIDAttrSetBib1
	}

	attrElem := append(
		encodeTLV(contextTag(120, false), encodeInteger(int64(q.AttributeType))),
		encodeTLV(contextTag(121, false), encodeInteger(int64(q.AttributeValue)))...,
	)
	attrList := encodeTLV(contextTag(44, true), attrElem)
	term := encodeTLV(contextTag(45, false), []byte(q.Term))
	attrTerm := encodeTLV(contextTag(102, true), append(attrList, term...))

	content := append(encodeTLV(Tag{ClassUniversal, true, 6}, encodeOID(attrSet)), attrTerm...)
	return encodeTLV(contextTag(1, true), content) // type-1 query wrapper
}

func decodeRPNQuery(data []byte) (RPNQuery, error) {
	var q RPNQuery
	for len(data) > 0 {
		t, v, n, err := decodeTLV(data)
		if err != nil {
			return RPNQuery{}, err
		}
		switch {
		case t.Class == ClassUniversal && t.Number == 6:
			q.AttributeSet = decodeOID(v)
		case t.Number == 102: // AttrTerm operand
			inner := v
			for len(inner) > 0 {
				it, iv, in, err := decodeTLV(inner)
				if err != nil {
					return RPNQuery{}, err
				}
				switch it.Number {
				case 44: // attribute list
					ai := iv
					for len(ai) > 0 {
						at, av, an, err := decodeTLV(ai)
						if err != nil {
							return RPNQuery{}, err
						}
						switch at.Number {
						case 120:
							q.AttributeType = uint32(decodeInteger(av))
						case 121:
							q.AttributeValue = uint32(decodeInteger(av))
						}
						ai = ai[an:]
					}
				case 45: // term
					q.Term = string(iv)
				}
				inner = inner[in:]
			}
		}
		data = data[n:]
	}
	return q, nil
}

// SearchRequest asks the target to evaluate a query against one or
// more databases and form a named result set.
type SearchRequest struct {
	ReferenceID            []byte
	SmallSetUpperBound     uint32
	LargeSetLowerBound     uint32
	MediumSetPresentNumber uint32
	ReplaceIndicator       bool
	ResultSetName          string
	DatabaseNames          []string
	Query                  RPNQuery
	PreferredRecordSyntax  []int
}

func (r SearchRequest) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fSearchRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fSearchSmallSetUpper, false), encodeInteger(int64(r.SmallSetUpperBound)))...)
	content = append(content, encodeTLV(contextTag(fSearchLargeSetLower, false), encodeInteger(int64(r.LargeSetLowerBound)))...)
	content = append(content, encodeTLV(contextTag(fSearchMediumSetPres, false), encodeInteger(int64(r.MediumSetPresentNumber)))...)
	content = append(content, encodeTLV(contextTag(fSearchReplaceInd, false), encodeBool(r.ReplaceIndicator))...)
	content = append(content, encodeTLV(contextTag(fSearchResultSetName, false), []byte(r.ResultSetName))...)

	var dbs []byte
	for _, name := range r.DatabaseNames {
		dbs = append(dbs, encodeTLV(contextTag(105, false), []byte(name))...)
	}
	content = append(content, encodeTLV(contextTag(fSearchDatabaseNames, true), dbs)...)

	content = append(content, encodeTLV(contextTag(fSearchQuery, true), r.Query.encode())...)

	if r.PreferredRecordSyntax != nil {
		content = append(content, encodeTLV(contextTag(fSearchPrefRecSyntax, false), encodeOID(r.PreferredRecordSyntax))...)
	}

	return encodeTLV(contextTag(TagSearchRequest, true), content)
}

func DecodeSearchRequest(data []byte) (SearchRequest, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return SearchRequest{}, 0, err
	}
	if tag.Number != TagSearchRequest {
		return SearchRequest{}, 0, fmt.Errorf("z3950: expected SearchRequest tag %d, got %d", TagSearchRequest, tag.Number)
	}

	var r SearchRequest
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return SearchRequest{}, 0, err
		}
		switch t.Number {
		case fSearchRefID:
			r.ReferenceID = v
		case fSearchSmallSetUpper:
			r.SmallSetUpperBound = uint32(decodeInteger(v))
		case fSearchLargeSetLower:
			r.LargeSetLowerBound = uint32(decodeInteger(v))
		case fSearchMediumSetPres:
			r.MediumSetPresentNumber = uint32(decodeInteger(v))
		case fSearchReplaceInd:
			r.ReplaceIndicator = decodeBool(v)
		case fSearchResultSetName:
			r.ResultSetName = string(v)
		case fSearchDatabaseNames:
			dbs := v
			for len(dbs) > 0 {
				_, dv, dn, err := decodeTLV(dbs)
				if err != nil {
					return SearchRequest{}, 0, err
				}
				r.DatabaseNames = append(r.DatabaseNames, string(dv))
				dbs = dbs[dn:]
			}
		case fSearchQuery:
			q, err := decodeRPNQuery(v)
			if err != nil {
				return SearchRequest{}, 0, err
			}
			r.Query = q
		case fSearchPrefRecSyntax:
			r.PreferredRecordSyntax = decodeOID(v)
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// SearchResponse reports how many records matched.
type SearchResponse struct {
	ReferenceID           []byte
	ResultCount           uint32
	NumberReturned        uint32
	NextResultSetPosition uint32
	SearchStatus          bool
	ResultSetStatus       uint8
	PresentStatus         uint8
	Records               [][]byte // raw MARC records, present only when NumberReturned > 0
}

func (r SearchResponse) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fSearchRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fSearchRespResultCount, false), encodeInteger(int64(r.ResultCount)))...)
	content = append(content, encodeTLV(contextTag(fSearchRespNumReturned, false), encodeInteger(int64(r.NumberReturned)))...)
	content = append(content, encodeTLV(contextTag(fSearchRespNextPos, false), encodeInteger(int64(r.NextResultSetPosition)))...)
	content = append(content, encodeTLV(contextTag(fSearchRespSearchStatus, false), encodeBool(r.SearchStatus))...)
	content = append(content, encodeTLV(contextTag(fSearchRespResultSetStat, false), encodeInteger(int64(r.ResultSetStatus)))...)
	content = append(content, encodeTLV(contextTag(fSearchRespPresentStat, false), encodeInteger(int64(r.PresentStatus)))...)
	if len(r.Records) > 0 {
		var recs []byte
		for _, rec := range r.Records {
			recs = append(recs, encodeTLV(contextTag(1, false), rec)...)
		}
		content = append(content, encodeTLV(contextTag(fSearchRespRecords, true), recs)...)
	}
	return encodeTLV(contextTag(TagSearchResponse, true), content)
}

func DecodeSearchResponse(data []byte) (SearchResponse, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return SearchResponse{}, 0, err
	}
	if tag.Number != TagSearchResponse {
		return SearchResponse{}, 0, fmt.Errorf("z3950: expected SearchResponse tag %d, got %d", TagSearchResponse, tag.Number)
	}

	var r SearchResponse
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return SearchResponse{}, 0, err
		}
		switch t.Number {
		case fSearchRefID:
			r.ReferenceID = v
		case fSearchRespResultCount:
			r.ResultCount = uint32(decodeInteger(v))
		case fSearchRespNumReturned:
			r.NumberReturned = uint32(decodeInteger(v))
		case fSearchRespNextPos:
			r.NextResultSetPosition = uint32(decodeInteger(v))
		case fSearchRespSearchStatus:
			r.SearchStatus = decodeBool(v)
		case fSearchRespResultSetStat:
			r.ResultSetStatus = uint8(decodeInteger(v))
		case fSearchRespPresentStat:
			r.PresentStatus = uint8(decodeInteger(v))
		case fSearchRespRecords:
			recs := v
			for len(recs) > 0 {
				_, rv, rn, err := decodeTLV(recs)
				if err != nil {
					return SearchResponse{}, 0, err
				}
				r.Records = append(r.Records, rv)
				recs = recs[rn:]
			}
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// PresentRequest asks for a range of records from an existing result set.
type PresentRequest struct {
	ReferenceID              []byte
	ResultSetID              string
	ResultSetStartPoint      uint32
	NumberOfRecordsRequested uint32
	RecordSyntax             []int
}

func (r PresentRequest) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fPresentRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fPresentResultSet, false), []byte(r.ResultSetID))...)
	content = append(content, encodeTLV(contextTag(fPresentStart, false), encodeInteger(int64(r.ResultSetStartPoint)))...)
	content = append(content, encodeTLV(contextTag(fPresentNumRequest, false), encodeInteger(int64(r.NumberOfRecordsRequested)))...)
	if r.RecordSyntax != nil {
		content = append(content, encodeTLV(contextTag(fPresentRecSyntax, false), encodeOID(r.RecordSyntax))...)
	}
	return encodeTLV(contextTag(TagPresentRequest, true), content)
}

func DecodePresentRequest(data []byte) (PresentRequest, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return PresentRequest{}, 0, err
	}
	if tag.Number != TagPresentRequest {
		return PresentRequest{}, 0, fmt.Errorf("z3950: expected PresentRequest tag %d, got %d", TagPresentRequest, tag.Number)
	}

	var r PresentRequest
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return PresentRequest{}, 0, err
		}
		switch t.Number {
		case fPresentRefID:
			r.ReferenceID = v
		case fPresentResultSet:
			r.ResultSetID = string(v)
		case fPresentStart:
			r.ResultSetStartPoint = uint32(decodeInteger(v))
		case fPresentNumRequest:
			r.NumberOfRecordsRequested = uint32(decodeInteger(v))
		case fPresentRecSyntax:
			r.RecordSyntax = decodeOID(v)
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// PresentResponse carries the requested records (as raw MARC binary
// blobs — see marc.FromBinary, or DecodeRecords in records.go, for
// decoding them).
type PresentResponse struct {
	ReferenceID           []byte
	NumberOfRecordsReturned uint32
	NextResultSetPosition uint32
	PresentStatus         uint8
	Records               [][]byte
}

func (r PresentResponse) Encode() []byte {
	var content []byte
	if r.ReferenceID != nil {
		content = append(content, encodeTLV(contextTag(fPresentRefID, false), r.ReferenceID)...)
	}
	content = append(content, encodeTLV(contextTag(fPresentRespNumReturned, false), encodeInteger(int64(r.NumberOfRecordsReturned)))...)
	content = append(content, encodeTLV(contextTag(fPresentRespNextPos, false), encodeInteger(int64(r.NextResultSetPosition)))...)
	content = append(content, encodeTLV(contextTag(fPresentRespStatus, false), encodeInteger(int64(r.PresentStatus)))...)
	if len(r.Records) > 0 {
		var recs []byte
		for _, rec := range r.Records {
			recs = append(recs, encodeTLV(contextTag(1, false), rec)...)
		}
		content = append(content, encodeTLV(contextTag(fPresentRespRecords, true), recs)...)
	}
	return encodeTLV(contextTag(TagPresentResponse, true), content)
}

func DecodePresentResponse(data []byte) (PresentResponse, int, error) {
	tag, content, consumed, err := decodeTLV(data)
	if err != nil {
		return PresentResponse{}, 0, err
	}
	if tag.Number != TagPresentResponse {
		return PresentResponse{}, 0, fmt.Errorf("z3950: expected PresentResponse tag %d, got %d", TagPresentResponse, tag.Number)
	}

	var r PresentResponse
	for len(content) > 0 {
		t, v, n, err := decodeTLV(content)
		if err != nil {
			return PresentResponse{}, 0, err
		}
		switch t.Number {
		case fPresentRefID:
			r.ReferenceID = v
		case fPresentRespNumReturned:
			r.NumberOfRecordsReturned = uint32(decodeInteger(v))
		case fPresentRespNextPos:
			r.NextResultSetPosition = uint32(decodeInteger(v))
		case fPresentRespStatus:
			r.PresentStatus = uint8(decodeInteger(v))
		case fPresentRespRecords:
			recs := v
			for len(recs) > 0 {
				_, rv, rn, err := decodeTLV(recs)
				if err != nil {
					return PresentResponse{}, 0, err
				}
				r.Records = append(r.Records, rv)
				recs = recs[rn:]
			}
		}
		content = content[n:]
	}
	return r, consumed, nil
}

// DecodePDU sniffs the leading tag number and dispatches to the
// matching decoder, returning the decoded value as `any` plus bytes
// consumed. PDUs are recognized by the first byte's tag.
func DecodePDU(data []byte) (pdu any, consumed int, err error) {
	tag, _, _, err := decodeTagLength(data)
	if err != nil {
		return nil, 0, err
	}
	switch tag.Number {
	case TagInitRequest:
		return wrap(DecodeInitializeRequest(data))
	case TagInitResponse:
		return wrap(DecodeInitializeResponse(data))
	case TagSearchRequest:
		return wrap(DecodeSearchRequest(data))
	case TagSearchResponse:
		return wrap(DecodeSearchResponse(data))
	case TagPresentRequest:
		return wrap(DecodePresentRequest(data))
	case TagPresentResponse:
		return wrap(DecodePresentResponse(data))
	default:
		return nil, 0, fmt.Errorf("z3950: unrecognized PDU tag %d", tag.Number)
	}
}

func wrap[T any](v T, n int, err error) (any, int, error) {
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}
