package service

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// OperatorInfo defines the structured identity of the authenticated admin
type OperatorInfo struct {
	UserID int64
	Email  string
	Level  string
}

// WithOperator injects the operator info into the context
func WithOperator(ctx context.Context, op *OperatorInfo) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// GetOperatorInfo retrieves the operator info from the context
func GetOperatorInfo(ctx context.Context) *OperatorInfo {
	val, ok := ctx.Value(operatorKey).(*OperatorInfo)
	if !ok {
		return nil
	}
	return val
}

// GetOperatorID returns the acting user's id, or 0 for system calls
func GetOperatorID(ctx context.Context) int64 {
	op := GetOperatorInfo(ctx)
	if op == nil {
		return 0
	}
	return op.UserID
}
