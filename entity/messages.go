package entity

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	Start = "👋 Welcome to the Simple Sticker Creator!\n\n" +
		"Send me any image URL and I'll instantly convert it to a Telegram sticker."

	Help = "🔍 How to use this bot:\n\n" +
		"1. Send me an image URL starting with http:// or https://, or just send a photo\n" +
		"2. I'll immediately return it as a sticker\n" +
		"3. You can save or forward the sticker to your chats\n\n" +
		"That's it! No sticker packs or extra steps needed."

	SendValidURL = "Please send a valid image URL starting with http:// or https://"

	Processing = "⏳ Processing image..."

	StickerCreated = "✅ Sticker created!\n\n" +
		"You can now forward this sticker to any chat.\n" +
		"To save it to your Favorites, tap and hold the sticker, then select 'Add to Favorites'."
)

// FailureText renders err as the text shown to the user in place of the
// progress message.
func FailureText(err error) string {
	var status *StatusError
	switch {
	case errors.As(err, &status):
		return fmt.Sprintf("❌ Failed to download image. Error code: %d", status.Code)
	case errors.Is(err, ErrUnsupportedFormat):
		return fmt.Sprintf("❌ Unsupported format: %v", err)
	case errors.Is(err, ErrUnsupportedImage), errors.Is(err, ErrEncodingFailed):
		return fmt.Sprintf("❌ Failed to process image: %v", err)
	default:
		return fmt.Sprintf("❌ Error: %v", err)
	}
}
