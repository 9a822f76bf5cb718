package imageservice

import (
	"context"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
)

// SourceKind tells which fallback produced an image source.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceStored
	SourceExternal
	SourcePlaceholderStored
	SourcePlaceholderURL
)

func (k SourceKind) String() string {
	switch k {
	case SourceStored:
		return "stored"
	case SourceExternal:
		return "external"
	case SourcePlaceholderStored:
		return "placeholder_stored"
	case SourcePlaceholderURL:
		return "placeholder_url"
	default:
		return "none"
	}
}

// ImageSource is something a UI can display: a data URI or a URL.
type ImageSource struct {
	Kind  SourceKind
	Value string
}

// Source picks the image to show for game: the stored image, then the
// catalog URL, then the stored placeholder, then the placeholder URL.
func (s *Service) Source(ctx context.Context, game *datastore.Game) ImageSource {
	if game != nil {
		if uri, ok := s.RetrieveAsDataURI(ctx, game.ID); ok {
			return ImageSource{Kind: SourceStored, Value: uri}
		}
		if game.HasExternalImage() {
			return ImageSource{Kind: SourceExternal, Value: game.ImagePath}
		}
	}
	if uri, ok := s.RetrieveAsDataURI(ctx, s.config.PlaceholderID); ok {
		return ImageSource{Kind: SourcePlaceholderStored, Value: uri}
	}
	if s.config.PlaceholderURL != "" {
		return ImageSource{Kind: SourcePlaceholderURL, Value: s.config.PlaceholderURL}
	}
	return ImageSource{}
}
