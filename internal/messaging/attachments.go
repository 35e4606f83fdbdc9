package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// AttachmentTranscoder converts a large or non-portable image into a
// smaller externalized form (WebP) for archive storage. It is a narrow
// seam deliberately left without a concrete implementation in this
// module — image format conversion is an external collaborator's
// contract, not something the coordination core owns.
type AttachmentTranscoder interface {
	Transcode(ctx context.Context, data []byte, mediaType string) (converted []byte, convertedMediaType string, err error)
}

// maxInlineBytes bounds how large an attachment can be before it must be
// externalized to a file rather than inlined as a data URI in the message
// body.
const maxInlineBytes = 256 * 1024

// ProcessAttachment decides between inline data-URI embedding and
// externalizing to a file under the archive, optionally transcoding first.
func ProcessAttachment(ctx context.Context, data []byte, mediaType, filename string, policy store.AttachmentsPolicy, transcoder AttachmentTranscoder) (store.Attachment, []byte, string, error) {
	sum := sha256.Sum256(data)
	att := store.Attachment{
		MediaType: mediaType,
		Bytes:     int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
	}

	if transcoder != nil && strings.HasPrefix(mediaType, "image/") && mediaType != "image/webp" {
		converted, convertedType, err := transcoder.Transcode(ctx, data, mediaType)
		if err != nil {
			return store.Attachment{}, nil, "", apperr.Wrap(apperr.OSError, err, "transcoding attachment")
		}
		data = converted
		mediaType = convertedType
		att.MediaType = convertedType
		att.Bytes = int64(len(data))
	}

	wantsInline := policy == store.AttachmentsInline || (policy == store.AttachmentsAuto && len(data) <= maxInlineBytes)
	if wantsInline {
		att.Type = "inline"
		att.DataURI = fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
		return att, nil, "", nil
	}

	att.Type = "file"
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = extensionFor(mediaType)
	}
	archivePath := filepath.Join("attachments", "raw", att.SHA256+ext)
	att.Path = archivePath
	return att, data, archivePath, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}
