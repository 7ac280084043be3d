package rounds

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// promptRegistry routes amount modal submissions to the engagement waiting
// for them, keyed by the button interaction that opened the modal
type promptRegistry struct {
	mu      sync.Mutex
	waiters map[string]chan *discordgo.InteractionCreate
}

func newPromptRegistry() *promptRegistry {
	return &promptRegistry{waiters: make(map[string]chan *discordgo.InteractionCreate)}
}

// register opens a slot for key. release closes it and returns a submission
// that arrived after the waiter stopped listening, if any.
func (r *promptRegistry) register(key string) (<-chan *discordgo.InteractionCreate, func() *discordgo.InteractionCreate) {
	ch := make(chan *discordgo.InteractionCreate, 1)

	r.mu.Lock()
	r.waiters[key] = ch
	r.mu.Unlock()

	release := func() *discordgo.InteractionCreate {
		r.mu.Lock()
		if r.waiters[key] == ch {
			delete(r.waiters, key)
		}
		r.mu.Unlock()

		select {
		case late := <-ch:
			return late
		default:
			return nil
		}
	}
	return ch, release
}

// deliver hands a submission to its waiter and reports whether one existed
func (r *promptRegistry) deliver(key string, i *discordgo.InteractionCreate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.waiters[key]
	if !ok {
		return false
	}
	delete(r.waiters, key)
	ch <- i
	return true
}

func (r *promptRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
