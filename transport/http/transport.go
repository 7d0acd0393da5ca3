package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flarexio/codechat"
)

const HeaderRequestID = "X-Request-ID"

// RequestID tags each request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("request_id", id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestLogger(c *gin.Context) *zap.Logger {
	return zap.L().With(
		zap.String("transport", "http"),
		zap.String("request_id", c.GetString("request_id")),
		zap.String("path", c.FullPath()),
	)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, codechat.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, codechat.ErrIndexNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusExpectationFailed
	}
}

func SearchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codechat.SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			requestLogger(c).Error(err.Error())
			c.String(statusOf(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		chunks, ok := resp.([]codechat.Chunk)
		if !ok {
			err := errors.New("invalid response type")
			c.String(http.StatusInternalServerError, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &chunks)
	}
}

// AskHandler streams fragments as server-sent events named after their
// field, followed by a final "done" event.
func AskHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codechat.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			requestLogger(c).Error(err.Error())
			c.String(statusOf(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		var stream codechat.Stream
		switch result := resp.(type) {
		case codechat.Stream:
			stream = result
		case codechat.AskResult:
			stream = codechat.NewSliceStream(result.Fragments())
		default:
			err := errors.New("invalid response type")
			c.String(http.StatusInternalServerError, err.Error())
			c.Error(err)
			c.Abort()
			return
		}
		defer stream.Close()

		log := requestLogger(c)

		c.Stream(func(w io.Writer) bool {
			f, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Error(err.Error())
					c.SSEvent("error", err.Error())
					return false
				}

				c.SSEvent("done", "")
				return false
			}

			c.SSEvent(string(f.Field), f.Text)
			return true
		})
	}
}
