package kafka

// Header names understood on scraper batch messages
const (
	HeaderRecordKind  = "record-kind"
	HeaderSource      = "source"
	HeaderBatchID     = "batch-id"
	HeaderTraceParent = "traceparent"
	HeaderEventType   = "type"
)

// Header is a Kafka message header
type Header struct {
	Key   string
	Value []byte
}

// MessageHeaders are the batch-level values carried next to the payload
type MessageHeaders struct {
	RecordKind  string
	Source      string
	BatchID     string
	TraceParent string
}

func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 4)

	if h.RecordKind != "" {
		headers = append(headers, Header{Key: HeaderRecordKind, Value: []byte(h.RecordKind)})
	}
	if h.Source != "" {
		headers = append(headers, Header{Key: HeaderSource, Value: []byte(h.Source)})
	}
	if h.BatchID != "" {
		headers = append(headers, Header{Key: HeaderBatchID, Value: []byte(h.BatchID)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: HeaderTraceParent, Value: []byte(h.TraceParent)})
	}

	return headers
}

func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case HeaderRecordKind:
			mh.RecordKind = string(h.Value)
		case HeaderSource:
			mh.Source = string(h.Value)
		case HeaderBatchID:
			mh.BatchID = string(h.Value)
		case HeaderTraceParent:
			mh.TraceParent = string(h.Value)
		}
	}
	return mh
}

// ReceivedMessage is a fetched scraper batch message
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   MessageHeaders
}
