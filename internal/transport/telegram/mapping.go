package telegram

import (
	"strings"

	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/media"
)

// UploadFrom resolves the stored media kind of msg. Photos use the largest
// size. Messages without a photo, video or document yield nil.
func UploadFrom(msg *Message) *media.Upload {
	switch {
	case len(msg.Photo) > 0:
		return &media.Upload{Type: media.Photo, FileID: msg.Photo[len(msg.Photo)-1].FileID, Caption: msg.Caption}
	case msg.Video != nil:
		return &media.Upload{Type: media.Video, FileID: msg.Video.FileID, Caption: msg.Caption}
	case msg.Document != nil:
		return &media.Upload{Type: media.Document, FileID: msg.Document.FileID, Caption: msg.Caption}
	}
	return nil
}

// hasAttachment reports whether msg carries any file at all.
func hasAttachment(msg *Message) bool {
	return len(msg.Photo) > 0 || msg.Video != nil || msg.Document != nil ||
		msg.Audio != nil || msg.Voice != nil || msg.Animation != nil ||
		msg.VideoNote != nil || msg.Sticker != nil
}

// RequestFrom builds the command request for a private or group message.
// Slash commands in the text win over attachments.
func RequestFrom(msg *Message) command.Request {
	req := command.Request{ChatID: msg.Chat.ID}
	if name, args, ok := command.Split(msg.Text); ok {
		req.Command = name
		req.Args = args
		return req
	}
	req.Upload = UploadFrom(msg)
	req.HasMedia = hasAttachment(msg)
	return req
}

// ChannelAck is the acknowledgement for a channel post. Channel media is not stored.
func ChannelAck(msg *Message) string {
	switch {
	case len(msg.Photo) > 0:
		return "📸 Photo received in channel!"
	case msg.Video != nil:
		return "📹 Video received in channel!"
	case msg.Document != nil:
		return "📄 Document received in channel!"
	}
	return "📝 Non-media message received in channel."
}

// Commands converts the described commands into the Telegram menu.
func Commands(defs []command.Definition) []BotCommand {
	out := make([]BotCommand, 0, len(defs))
	for _, d := range defs {
		desc := d.Description
		if desc == "" {
			desc = "show what I can do"
		}
		out = append(out, BotCommand{Command: d.Name, Description: strings.ToUpper(desc[:1]) + desc[1:]})
	}
	return out
}
