package model

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// Task selects one of the two independent label spaces
type Task string

const (
	TaskEmotion Task = "emotion"
	TaskIntent  Task = "intent"
)

// Validate checks if the task is known
func (t Task) Validate() error {
	switch t {
	case TaskEmotion, TaskIntent:
		return nil
	default:
		return goerr.New("invalid task", goerr.V("task", t))
	}
}

// LabelSet is a closed, lexicographically sorted set of labels. The position of
// a label in the set is its index in a Distribution.
type LabelSet struct {
	names []string
	index map[string]int
}

// NewLabelSet builds a LabelSet from names. Duplicates and empty names are dropped.
func NewLabelSet(names ...string) *LabelSet {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			sorted = append(sorted, n)
		}
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	index := make(map[string]int, len(sorted))
	for i, n := range sorted {
		index[n] = i
	}
	return &LabelSet{names: sorted, index: index}
}

// Len returns the number of labels
func (s *LabelSet) Len() int { return len(s.names) }

// Names returns a copy of the labels in index order
func (s *LabelSet) Names() []string { return slices.Clone(s.names) }

// Name returns the label at index i
func (s *LabelSet) Name(i int) string { return s.names[i] }

// Index returns the index of label and whether it belongs to the set
func (s *LabelSet) Index(label string) (int, bool) {
	i, ok := s.index[label]
	return i, ok
}

// Contains reports whether label belongs to the set
func (s *LabelSet) Contains(label string) bool {
	_, ok := s.index[label]
	return ok
}

var (
	// EmotionLabels is the emotion label space
	EmotionLabels = NewLabelSet("anger", "fear", "joy", "love", "sadness", "surprise", "neutral")

	// IntentLabels is the intent label space
	IntentLabels = NewLabelSet(
		IntentServiceRequest,
		IntentHotelInfo,
		IntentInternalExperience,
		IntentExternalExperience,
		IntentBooking,
		IntentOffTopic,
		IntentFeedback,
	)
)

// Labels returns the label set of the task
func (t Task) Labels() *LabelSet {
	if t == TaskEmotion {
		return EmotionLabels
	}
	return IntentLabels
}

const (
	IntentServiceRequest     = "service_request"
	IntentHotelInfo          = "hotel_info"
	IntentInternalExperience = "internal_experience"
	IntentExternalExperience = "external_experience"
	IntentBooking            = "booking"
	IntentOffTopic           = "off_topic"
	IntentFeedback           = "feedback"
)

// Action is the coarse action derived from an intent
type Action string

const (
	ActionRequestService Action = "request_service"
	ActionAskInfo        Action = "ask_info"
	ActionBook           Action = "book"
	ActionOther          Action = "other"
)

var intentActions = map[string]Action{
	IntentServiceRequest:     ActionRequestService,
	IntentHotelInfo:          ActionAskInfo,
	IntentInternalExperience: ActionAskInfo,
	IntentExternalExperience: ActionAskInfo,
	IntentBooking:            ActionBook,
}

// ActionFromIntent maps an intent label to its action. Unknown intents map to ActionOther.
func ActionFromIntent(intent string) Action {
	if a, ok := intentActions[intent]; ok {
		return a
	}
	return ActionOther
}
