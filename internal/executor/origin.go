package executor

import "context"

// Origin records who started a run and through which surface
type Origin struct {
	ExecutedBy string
	Method     string
	// Details holds surface specific facts such as a job id or a client address
	Details map[string]string
}

type originKey struct{}

// WithOrigin returns a context carrying origin
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin stored in ctx. Runs without one were started
// by the system from the command line.
func OriginFrom(ctx context.Context) Origin {
	origin, _ := ctx.Value(originKey{}).(Origin)
	if origin.ExecutedBy == "" {
		origin.ExecutedBy = "system"
	}
	if origin.Method == "" {
		origin.Method = "cli"
	}
	return origin
}

// Fields flattens the origin for log entries and job metadata
func (o Origin) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(o.Details)+2)
	for key, value := range o.Details {
		fields[key] = value
	}
	fields["executed_by"] = o.ExecutedBy
	fields["execution_method"] = o.Method
	return fields
}
