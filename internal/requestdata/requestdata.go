package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type RequestData struct {
	UserID       uuid.UUID
	SessionID    uuid.UUID
	TokenString  string
	RefreshToken string
}

type requestDataKey struct{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	rd, ok := val.(*RequestData)
	if !ok {
		return nil
	}
	return rd
}
