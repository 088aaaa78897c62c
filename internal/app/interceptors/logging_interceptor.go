package interceptors

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs method, status code and latency of every unary call.
// Metadata keys are logged at debug level, values never are.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		const op = "interceptors.LoggingInterceptor"
		log := logger.With(slog.String("op", op), slog.String("method", info.FullMethod))

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			keys := make([]string, 0, md.Len())
			for k := range md {
				keys = append(keys, k)
			}
			log.Debug("incoming metadata", slog.Any("keys", keys))
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("call served",
			slog.String("code", status.Code(err).String()),
			slog.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
