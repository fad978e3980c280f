package ads

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/bissquit/newsroom/internal/domain"
)

// Strategy names accepted by the selector.
const (
	StrategyDefault  = "default"
	StrategyRotation = "rotation"
	StrategyRandom   = "random"
)

// Strategy picks up to limit ads from the live candidates of one rotation key.
type Strategy interface {
	Select(ctx context.Context, key string, candidates []domain.Ad, limit int) ([]domain.Ad, error)
}

// Rotate returns min(limit, len(candidates)) ads starting at cursor and
// wrapping around, plus the cursor for the next call.
func Rotate(candidates []domain.Ad, limit, cursor int) ([]domain.Ad, int) {
	n := len(candidates)
	if n == 0 || limit <= 0 {
		return []domain.Ad{}, 0
	}

	start := ((cursor % n) + n) % n
	count := min(limit, n)

	selected := make([]domain.Ad, 0, count)
	for i := 0; i < count; i++ {
		selected = append(selected, candidates[(start+i)%n])
	}
	return selected, (start + count) % n
}

// DefaultStrategy returns the first limit candidates.
type DefaultStrategy struct{}

// Select implements Strategy.
func (DefaultStrategy) Select(_ context.Context, _ string, candidates []domain.Ad, limit int) ([]domain.Ad, error) {
	selected, _ := Rotate(candidates, limit, 0)
	return selected, nil
}

// RotationStrategy cycles through the candidates, keeping the cursor per key
// in a CursorStore.
type RotationStrategy struct {
	cursors CursorStore
}

// NewRotationStrategy creates a rotation strategy backed by cursors.
func NewRotationStrategy(cursors CursorStore) *RotationStrategy {
	return &RotationStrategy{cursors: cursors}
}

// Select implements Strategy.
func (s *RotationStrategy) Select(ctx context.Context, key string, candidates []domain.Ad, limit int) ([]domain.Ad, error) {
	n := len(candidates)
	if n == 0 || limit <= 0 {
		return []domain.Ad{}, nil
	}

	start, err := s.cursors.Advance(ctx, key, min(limit, n), n)
	if err != nil {
		return nil, fmt.Errorf("advance cursor %q: %w", key, err)
	}

	selected, _ := Rotate(candidates, limit, start)
	return selected, nil
}

// RandomStrategy samples candidates uniformly without replacement.
type RandomStrategy struct {
	perm func(n int) []int
}

// NewRandomStrategy creates a random strategy using the global source.
func NewRandomStrategy() *RandomStrategy {
	return &RandomStrategy{perm: rand.Perm}
}

// Select implements Strategy.
func (s *RandomStrategy) Select(_ context.Context, _ string, candidates []domain.Ad, limit int) ([]domain.Ad, error) {
	n := len(candidates)
	if n == 0 || limit <= 0 {
		return []domain.Ad{}, nil
	}

	order := s.perm(n)
	selected := make([]domain.Ad, 0, min(limit, n))
	for _, idx := range order[:min(limit, n)] {
		selected = append(selected, candidates[idx])
	}
	return selected, nil
}

// Selector resolves strategies by name. Unknown names resolve to the default
// strategy.
type Selector struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// NewSelector registers the built-in strategies. Rotation state lives in cursors.
func NewSelector(cursors CursorStore) *Selector {
	return &Selector{
		strategies: map[string]Strategy{
			StrategyDefault:  DefaultStrategy{},
			StrategyRotation: NewRotationStrategy(cursors),
			StrategyRandom:   NewRandomStrategy(),
		},
		fallback: DefaultStrategy{},
	}
}

// Get returns the strategy registered under name and the name actually used.
func (s *Selector) Get(name string) (Strategy, string) {
	if strategy, ok := s.strategies[name]; ok {
		return strategy, name
	}
	return s.fallback, StrategyDefault
}
