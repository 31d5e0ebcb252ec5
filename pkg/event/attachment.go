package event

import (
	"strconv"

	"github.com/mymmrac/telego"
)

// AttachmentKind names a normalized attachment type.
type AttachmentKind string

const (
	AttachmentPhoto     AttachmentKind = "photo"
	AttachmentVideo     AttachmentKind = "video"
	AttachmentAudio     AttachmentKind = "audio"
	AttachmentVoice     AttachmentKind = "voice"
	AttachmentVideoNote AttachmentKind = "video_note"
	AttachmentDocument  AttachmentKind = "document"
	AttachmentSticker   AttachmentKind = "sticker"
	AttachmentLink      AttachmentKind = "link"
	AttachmentWall      AttachmentKind = "wall"
	AttachmentLocation  AttachmentKind = "location"
	AttachmentContact   AttachmentKind = "contact"
	AttachmentOther     AttachmentKind = "other"
)

// Attachment is one media item in platform-neutral form.
//
// ID is what the originating platform accepts to resend the item: a
// "photo<owner>_<id>" style reference on VK, a file_id on Telegram.
type Attachment struct {
	Kind AttachmentKind
	ID   string
	URL  string
	Name string
}

func vkAttachments(items []VKAttachment) []Attachment {
	if len(items) == 0 {
		return nil
	}

	out := make([]Attachment, 0, len(items))
	for _, item := range items {
		switch {
		case item.Photo != nil:
			out = append(out, Attachment{
				Kind: AttachmentPhoto,
				ID:   vkReference("photo", item.Photo.OwnerID, item.Photo.ID, item.Photo.AccessKey),
				URL:  largestVKPhoto(item.Photo.Sizes),
			})
		case item.Video != nil:
			out = append(out, Attachment{
				Kind: AttachmentVideo,
				ID:   vkReference("video", item.Video.OwnerID, item.Video.ID, item.Video.AccessKey),
				Name: item.Video.Title,
			})
		case item.Audio != nil:
			out = append(out, Attachment{
				Kind: AttachmentAudio,
				ID:   vkReference("audio", item.Audio.OwnerID, item.Audio.ID, item.Audio.AccessKey),
				URL:  item.Audio.URL,
				Name: item.Audio.Title,
			})
		case item.Doc != nil:
			out = append(out, Attachment{
				Kind: AttachmentDocument,
				ID:   vkReference("doc", item.Doc.OwnerID, item.Doc.ID, item.Doc.AccessKey),
				URL:  item.Doc.URL,
				Name: item.Doc.Title,
			})
		case item.Link != nil:
			out = append(out, Attachment{Kind: AttachmentLink, URL: item.Link.URL, Name: item.Link.Title})
		case item.Sticker != nil:
			out = append(out, Attachment{Kind: AttachmentSticker, ID: strconv.FormatInt(item.Sticker.StickerID, 10)})
		case item.Wall != nil:
			out = append(out, Attachment{
				Kind: AttachmentWall,
				ID:   vkReference("wall", item.Wall.OwnerID, item.Wall.ID, item.Wall.AccessKey),
			})
		default:
			out = append(out, Attachment{Kind: AttachmentOther, Name: item.Type})
		}
	}

	return out
}

// vkReference renders the <type><owner_id>_<id>[_<access_key>] form messages.send accepts.
func vkReference(kind string, ownerID, id int64, accessKey string) string {
	ref := kind + strconv.FormatInt(ownerID, 10) + "_" + strconv.FormatInt(id, 10)
	if accessKey != "" {
		ref += "_" + accessKey
	}
	return ref
}

func largestVKPhoto(sizes []VKPhotoSize) string {
	best := -1
	url := ""
	for _, size := range sizes {
		if area := size.Width * size.Height; area > best {
			best = area
			url = size.URL
		}
	}
	return url
}

func telegramAttachments(message *telego.Message) []Attachment {
	if message == nil {
		return nil
	}

	var out []Attachment
	if n := len(message.Photo); n > 0 {
		// Sizes arrive smallest first.
		out = append(out, Attachment{Kind: AttachmentPhoto, ID: message.Photo[n-1].FileID})
	}
	if message.Video != nil {
		out = append(out, Attachment{Kind: AttachmentVideo, ID: message.Video.FileID})
	}
	if message.Audio != nil {
		out = append(out, Attachment{Kind: AttachmentAudio, ID: message.Audio.FileID, Name: message.Audio.Title})
	}
	if message.Voice != nil {
		out = append(out, Attachment{Kind: AttachmentVoice, ID: message.Voice.FileID})
	}
	if message.VideoNote != nil {
		out = append(out, Attachment{Kind: AttachmentVideoNote, ID: message.VideoNote.FileID})
	}
	if message.Document != nil {
		out = append(out, Attachment{Kind: AttachmentDocument, ID: message.Document.FileID, Name: message.Document.FileName})
	}
	if message.Sticker != nil {
		out = append(out, Attachment{Kind: AttachmentSticker, ID: message.Sticker.FileID})
	}
	if message.Location != nil {
		out = append(out, Attachment{
			Kind: AttachmentLocation,
			Name: strconv.FormatFloat(message.Location.Latitude, 'f', -1, 64) + "," +
				strconv.FormatFloat(message.Location.Longitude, 'f', -1, 64),
		})
	}
	if message.Contact != nil {
		out = append(out, Attachment{Kind: AttachmentContact, Name: message.Contact.PhoneNumber})
	}

	return out
}
