// Per-chat policy storage.
//
// Reads of chats with no stored policy return policy.Default(); the default is not written back until an admin configures the chat.
package settings

import (
	"context"

	"github.com/iris-chat/warden/automod/policy"
)

type PolicyStore interface {
	Get(ctx context.Context, chatID int64) (policy.ChatPolicy, error)
	// Overwrites the stored policy. Callers validate first.
	Put(ctx context.Context, chatID int64, p policy.ChatPolicy) error
}
