package logging

import (
	"context"
	"log/slog"
	"sort"

	"github.com/samber/oops"
)

// ErrorAttrs flattens err into slog attributes. oops errors contribute their
// code, domain and context; other errors only their message.
func ErrorAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return attrs
	}
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, slog.Any("error_code", code))
	}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, slog.String("error_domain", domain))
	}

	ctx := oopsErr.Context()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, ctx[k]))
	}
	return attrs
}

// LogError logs msg at error level with err flattened into attributes.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelError, msg, append(attrs, ErrorAttrs(err)...)...)
}
