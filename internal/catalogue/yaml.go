package catalogue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// fileSchema is the on-disk catalogue layout:
//
//	exercises:
//	  - id: squats
//	    name: Squats
//	    media: squats.gif
//	    duration: 20s
//	    difficulty: easy
//	    tags: [legs, strength]
type fileSchema struct {
	Exercises []exerciseEntry `yaml:"exercises"`
}

type exerciseEntry struct {
	ID         string        `yaml:"id"`
	Name       string        `yaml:"name"`
	Media      string        `yaml:"media"`
	Duration   time.Duration `yaml:"duration"`
	Difficulty string        `yaml:"difficulty"`
	Tags       []string      `yaml:"tags"`
}

// LoadFile reads a YAML catalogue. The result starts from the built-in
// exercises; entries in the file add to or replace them.
func LoadFile(path string, log *logger.Logger) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: open %s: %w", path, err)
	}
	defer f.Close()

	src := NewMemorySource(log)
	n, err := src.Load(f)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %s: %w", path, err)
	}
	log.Info("loaded %d exercises from %s", n, path)
	return src, nil
}

// Load decodes YAML exercises from r into the source. Unknown fields are
// rejected. It returns the number of entries added.
func (s *MemorySource) Load(r io.Reader) (int, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc fileSchema
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode: %w", err)
	}

	var errs []error
	seen := map[string]bool{}
	for i, entry := range doc.Exercises {
		switch {
		case entry.ID == "":
			errs = append(errs, fmt.Errorf("exercises[%d]: id is required", i))
			continue
		case entry.Name == "":
			errs = append(errs, fmt.Errorf("exercises[%d] (%s): name is required", i, entry.ID))
			continue
		case seen[entry.ID]:
			errs = append(errs, fmt.Errorf("exercises[%d]: duplicate id %q", i, entry.ID))
			continue
		case entry.Duration < 0:
			errs = append(errs, fmt.Errorf("exercises[%d] (%s): negative duration", i, entry.ID))
			continue
		}
		seen[entry.ID] = true
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	for _, entry := range doc.Exercises {
		if err := s.Add(&domain.Exercise{
			ID:           entry.ID,
			Name:         entry.Name,
			MediaRef:     entry.Media,
			WorkDuration: entry.Duration,
			Difficulty:   domain.ParseDifficulty(entry.Difficulty),
			Tags:         entry.Tags,
		}); err != nil {
			return 0, err
		}
	}
	return len(doc.Exercises), nil
}
