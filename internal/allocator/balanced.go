// Package allocator selects the questions of a new attempt from the bank catalog.
package allocator

import (
	"context"
	"fmt"
	"sort"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
)

// Catalog lists the questions that may be allocated.
type Catalog interface {
	Catalog(ctx context.Context) ([]domain.QuestionRef, error)
}

// Balanced draws questions round-robin from (qtype, category) buckets so every kind of question
// and every category is represented as evenly as the bank allows.
type Balanced struct {
	catalog  Catalog
	shuffler app.Shuffler
}

func NewBalanced(catalog Catalog, shuffler app.Shuffler) *Balanced {
	if shuffler == nil {
		shuffler = app.NewRandShuffler()
	}
	return &Balanced{catalog: catalog, shuffler: shuffler}
}

func (b *Balanced) Allocate(ctx context.Context, _ string, count int) ([]domain.AssignedQuestion, error) {
	refs, err := b.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(refs) < count {
		return nil, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientQuestions, count, len(refs))
	}

	buckets := make(map[string][]domain.QuestionRef)
	for _, ref := range refs {
		key := string(ref.QType) + "/" + string(ref.Category)
		buckets[key] = append(buckets[key], ref)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bucket := buckets[k]
		b.shuffler.Shuffle(len(bucket), func(i, j int) { bucket[i], bucket[j] = bucket[j], bucket[i] })
	}

	picked := make([]domain.QuestionRef, 0, count)
	for round := 0; len(picked) < count; round++ {
		for _, k := range keys {
			if len(picked) == count {
				break
			}
			if round < len(buckets[k]) {
				picked = append(picked, buckets[k][round])
			}
		}
	}

	b.shuffler.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	out := make([]domain.AssignedQuestion, len(picked))
	for i, ref := range picked {
		out[i] = domain.AssignedQuestion{Position: i + 1, QuestionID: ref.ID, QType: ref.QType}
	}
	return out, nil
}
