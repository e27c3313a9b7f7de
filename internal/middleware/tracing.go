package middleware

import (
	"errors"
	"strings"

	"simplesns/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// TraceIDHeader echoes the request's trace id back to the client.
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware opens a server span per request, continues any incoming
// W3C trace context and tags the span with the serving provider. After the
// handler ran the span is renamed after the matched route and, for
// /posts/:id, tagged with the post id.
func TracingMiddleware(provider string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.GetTraceLayer().TraceHTTPRequest(ctx, provider, c.Method(), c.Path())
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set(TraceIDHeader, traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		observability.NameHTTPSpan(span, c.Method(), route)
		if strings.Contains(route, ":id") {
			span.SetAttributes(attribute.String("post.id", c.Params("id")))
		}
		if uid, ok := c.Locals(UserIDLocalsKey).(string); ok && uid != "" {
			span.SetAttributes(attribute.String("user.id", uid))
		}

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}
		return err
	}
}
