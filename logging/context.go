package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKeyType struct{}

// EnableDebugMode returns a context under which the CDebug methods log whatever the logger's
// level. key names the debug session in the logs; an empty key is replaced by a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKeyType{}, key)
}

// IsDebugMode returns whether ctx came from EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugKey(ctx) != ""
}

// DebugKey returns the key given to EnableDebugMode, or "" outside debug mode.
func DebugKey(ctx context.Context) string {
	key, _ := ctx.Value(debugKeyType{}).(string)
	return key
}
