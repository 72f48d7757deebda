// Package logging provides structured logging using uber/zap.
//
// Production loggers write JSON, development loggers write colored console
// lines. Every entry carries the service name, and ForRequest adds the
// request and trace IDs:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.ForRequest(requestID, traceID).Warn("Event rejected", zap.Error(err))
//
// Arbitrary values, which may be cyclic or very large, go through Value so
// that they are normalized before zap reflects over them:
//
//	logger.Warn("Unexpected payload", logging.Value("payload", v))
package logging
