package scenario

import (
	"fmt"
	"sort"
	"sync"
)

// TagRegistry holds the recognised values of an open-ended tag field.
// Unrecognised tags are reported as warnings, never as errors.
type TagRegistry struct {
	mu   sync.RWMutex
	tags map[string]struct{}
}

// NewTagRegistry creates a registry seeded with tags
func NewTagRegistry(tags ...string) *TagRegistry {
	r := &TagRegistry{tags: make(map[string]struct{}, len(tags))}
	for _, tag := range tags {
		r.tags[tag] = struct{}{}
	}
	return r
}

// Register adds a tag to the registry
func (r *TagRegistry) Register(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag == "" {
		return fmt.Errorf("tag must not be empty")
	}
	if _, exists := r.tags[tag]; exists {
		return fmt.Errorf("tag %s already registered", tag)
	}

	r.tags[tag] = struct{}{}
	return nil
}

// Has reports whether tag is recognised
func (r *TagRegistry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tags[tag]
	return ok
}

// List returns all registered tags in sorted order
func (r *TagRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultMetricTasks lists the task metrics known to the evaluation engine
var DefaultMetricTasks = NewTagRegistry(
	"categorical_accuracy",
	"top_5_categorical_accuracy",
	"word_error_rate",
	"object_detection_AP_per_class",
	"object_detection_disappearance_rate",
	"object_detection_hallucinations_per_image",
	"object_detection_misclassification_rate",
	"object_detection_true_positive_rate",
	"carla_od_AP_per_class",
	"video_tracking_mean_iou",
	"video_tracking_mean_success_rate",
	"mars_mean_l2",
	"mars_mean_patch",
	"poisoning_accuracy",
	"identity_unzip",
)

// DefaultPerturbations lists the known perturbation norms
var DefaultPerturbations = NewTagRegistry(
	"linf",
	"l0",
	"l1",
	"l2",
	"lp",
	"snr",
	"snr_db",
	"snr_spectrogram",
	"snr_spectrogram_db",
	"image_circle_patch_diameter",
	"mean_l0",
	"mean_l1",
	"mean_l2",
	"mean_linf",
)
