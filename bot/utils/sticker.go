package bot

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/telebot.v3"

	"sticker-bot/entity"
)

type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type Downloader interface {
	File(file *telebot.File) (io.ReadCloser, error)
}

type Sticker struct {
	api Sender
}

func NewSticker(api Sender) Sticker {
	return Sticker{
		api: api,
	}
}

// UploadSticker sends data to the chat as a new static sticker.
func (sticker Sticker) UploadSticker(to telebot.Recipient, data []byte) (*telebot.Message, error) {
	// telebot sends reader uploads without a file name; Telegram sniffs the WEBP content.
	s := &telebot.Sticker{File: telebot.FromReader(bytes.NewReader(data))}
	msg, err := sticker.api.Send(to, s)
	if err != nil {
		return nil, errors.WithMessage(entity.ErrSendSticker, err.Error())
	}
	return msg, nil
}

// Download reads a file stored on Telegram's servers, refusing anything
// larger than limit bytes.
func Download(api Downloader, file *telebot.File, limit int64) ([]byte, error) {
	if file.FileSize > limit {
		return nil, errors.WithMessagef(entity.ErrTooLarge, "%d bytes", file.FileSize)
	}
	rc, err := api.File(file)
	if err != nil {
		return nil, errors.WithMessage(err, "get file")
	}
	defer rc.Close()

	return readLimited(rc, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.WithMessage(err, "read body")
	}
	if int64(len(data)) > limit {
		return nil, errors.WithMessagef(entity.ErrTooLarge, "more than %d bytes", limit)
	}
	return data, nil
}
