package source

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/semdex-io/semdex/internal/domain/document"
)

// template groups related CS topics the generator cycles through.
type template struct {
	domains  []string
	venues   []string
	keywords []string
}

var syntheticTemplates = []template{
	{
		domains:  []string{"Machine Learning", "Deep Learning", "Neural Networks"},
		venues:   []string{"NIPS", "ICML", "ICLR", "JMLR"},
		keywords: []string{"neural networks", "deep learning", "machine learning", "AI"},
	},
	{
		domains:  []string{"Computer Vision", "Image Processing", "Visual Recognition"},
		venues:   []string{"CVPR", "ICCV", "ECCV", "BMVC"},
		keywords: []string{"computer vision", "image processing", "object detection", "CNN"},
	},
	{
		domains:  []string{"Natural Language Processing", "Text Mining", "Language Models"},
		venues:   []string{"ACL", "EMNLP", "NAACL", "TACL"},
		keywords: []string{"NLP", "language models", "text processing", "transformer"},
	},
	{
		domains:  []string{"Robotics", "Autonomous Systems", "Robot Learning"},
		venues:   []string{"ICRA", "IROS", "RSS", "CoRL"},
		keywords: []string{"robotics", "autonomous systems", "robot learning", "SLAM"},
	},
	{
		domains:  []string{"Reinforcement Learning", "Game Theory", "Decision Making"},
		venues:   []string{"AAAI", "IJCAI", "AAMAS", "ICML"},
		keywords: []string{"reinforcement learning", "Q-learning", "policy gradient", "RL"},
	},
}

// titleCycle is the number of distinct template/domain/keyword combinations:
// 5 templates x 3 domains x 4 keywords, pairwise coprime periods.
const titleCycle = 60

// Synthetic generates a deterministic paper corpus from topic templates.
// The same seed and count always produce the same documents.
type Synthetic struct {
	count int
	seed  int64
}

// NewSynthetic creates a generator for count papers.
func NewSynthetic(count int, seed int64) *Synthetic {
	return &Synthetic{count: count, seed: seed}
}

// Name implements Source.
func (s *Synthetic) Name() string { return "synthetic" }

// Fetch generates the corpus. Titles must stay unique through downstream
// dedup; combinations cycle every 60 papers, so later cycles carry a part
// number.
func (s *Synthetic) Fetch(ctx context.Context) ([]document.Document, error) {
	rng := rand.New(rand.NewSource(s.seed))

	docs := make([]document.Document, 0, s.count)
	for i := 0; i < s.count; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tpl := syntheticTemplates[i%len(syntheticTemplates)]
		domain := tpl.domains[i%len(tpl.domains)]
		venue := tpl.venues[i%len(tpl.venues)]
		keyword := tpl.keywords[i%len(tpl.keywords)]

		title := fmt.Sprintf("Advanced %s: A Novel Approach to %s", domain, keyword)
		if cycle := i / titleCycle; cycle > 0 {
			title = fmt.Sprintf("%s, Part %d", title, cycle+1)
		}

		abstract := fmt.Sprintf(
			"This paper presents a novel approach to %s. We propose a new method "+
				"that significantly improves upon existing techniques in %s. Our "+
				"experimental results demonstrate superior performance across multiple benchmarks.",
			strings.ToLower(domain), keyword,
		)

		doc, err := document.New(fmt.Sprintf("paper_%06d", i), title, abstract)
		if err != nil {
			return nil, fmt.Errorf("generating paper %d: %w", i, err)
		}

		authors := make([]string, 1+rng.Intn(4))
		for j := range authors {
			authors[j] = fmt.Sprintf("Author %d", j+1)
		}
		year := 2015 + rng.Intn(10)
		keywords := tpl.keywords[:2+rng.Intn(3)]

		docs = append(docs, doc.WithMetadata(
			authors, year, venue, keywords,
			fmt.Sprintf("https://example.com/paper_%06d", i), s.Name(),
		))
	}
	return docs, nil
}
