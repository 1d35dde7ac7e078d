package context

import "context"

type ContextKey string

var (
	RequestIDKey  = ContextKey("X-Request-Id")
	MethodKey     = ContextKey("X-Method")
	RouteKey      = ContextKey("X-Route")
	RemoteIPKey   = ContextKey("X-Remote-Ip")
	SourceKey     = ContextKey("X-Scraper-Source")
	BatchIDKey    = ContextKey("X-Batch-Id")
	RecordKindKey = ContextKey("X-Record-Kind")
)

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getString(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getString(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getString(ctx, RemoteIPKey)
}

// SetSource records which scraper or transport delivered the batch.
func SetSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

func GetSource(ctx context.Context) string {
	return getString(ctx, SourceKey)
}

func SetBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

func GetBatchID(ctx context.Context) string {
	return getString(ctx, BatchIDKey)
}

func SetRecordKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, RecordKindKey, kind)
}

func GetRecordKind(ctx context.Context) string {
	return getString(ctx, RecordKindKey)
}

// LogFields returns the batch-scoped values present on ctx, keyed for structured logs.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for key, value := range map[string]string{
		"request_id":  GetRequestID(ctx),
		"batch_id":    GetBatchID(ctx),
		"record_kind": GetRecordKind(ctx),
		"source":      GetSource(ctx),
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
