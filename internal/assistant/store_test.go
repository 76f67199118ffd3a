package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell/storybot/internal/model"
)

func TestStoreAppendPreservesOrder(t *testing.T) {
	s := NewStore(model.Message{ID: "seed"}, 0)
	for _, id := range []string{"a", "b", "c"} {
		s.Append(model.Message{ID: id})
	}

	all := s.All()
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{"seed", "a", "b", "c"}, ids(all))
	assert.Equal(t, "c", s.Last().ID)

	all[0].ID = "changed"
	assert.Equal(t, "seed", s.All()[0].ID)
}

func TestStoreLimitKeepsNewest(t *testing.T) {
	s := NewStore(model.Message{ID: "seed"}, 3)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Append(model.Message{ID: id})
	}

	assert.Equal(t, []string{"b", "c", "d"}, ids(s.All()))
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
