package platform

import (
	"fmt"

	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

// Phases returns the listings walked for mode. Normal mode walks the
// timeline and then the messages; a failing messages listing is only
// logged there. postRef is used by single mode.
func (c *Client) Phases(mode, postRef string) ([]retrieval.Phase, error) {
	switch mode {
	case models.ModeNormal, "":
		return []retrieval.Phase{
			{Name: models.ModeTimeline, Catalog: c},
			{Name: models.ModeMessages, Catalog: NewMessagesCatalog(c), Optional: true},
		}, nil
	case models.ModeTimeline:
		return []retrieval.Phase{{Name: models.ModeTimeline, Catalog: c}}, nil
	case models.ModeMessages:
		return []retrieval.Phase{{Name: models.ModeMessages, Catalog: NewMessagesCatalog(c)}}, nil
	case models.ModeCollection:
		return []retrieval.Phase{{Name: models.ModeCollection, Catalog: &CollectionsCatalog{Client: c}}}, nil
	case models.ModeSingle:
		post, err := NewPostCatalog(c, postRef)
		if err != nil {
			return nil, err
		}
		return []retrieval.Phase{{Name: models.ModeSingle, Catalog: post}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}
