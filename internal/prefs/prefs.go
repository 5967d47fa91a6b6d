// Package prefs is the preference store for the contextual search feature:
// named scalar values (counters, timestamps, the user's opt-in state) that
// outlive a browsing session. Reads and writes are synchronous; callers on
// the event loop treat the store as an opaque external call.
package prefs

// Preference keys. All values are integers; timestamps are stored as Unix
// nanoseconds.
const (
	// KeyTapCount counts taps since the search panel was last opened.
	KeyTapCount = "contextual_search_tap_count"
	// KeyTapQuickAnswerCount counts taps that were answered directly in the
	// bar, a subset of KeyTapCount.
	KeyTapQuickAnswerCount = "contextual_search_tap_quick_answer_count"
	// KeyPromoOpenCount counts how many times the user opened the panel
	// while the opt-in promo was showing.
	KeyPromoOpenCount = "contextual_search_promo_open_count"
	// KeyPeekPromoShowCount counts how many times the peek promo was shown.
	KeyPeekPromoShowCount = "contextual_search_peek_promo_show_count"
	// KeyLastAnimationTime records when the search provider icon last
	// animated, as Unix nanoseconds.
	KeyLastAnimationTime = "contextual_search_last_animation_time"
	// KeyPromoTapCounter holds the sign-biased promo tap counter encoding,
	// see policy.PromoTapCounter.
	KeyPromoTapCounter = "contextual_search_promo_tap_counter"
	// KeyUserState holds the user's opt-in decision, see UserState.
	KeyUserState = "contextual_search_user_state"
)

// UserState is the user's contextual search opt-in decision.
type UserState int

const (
	// UserUndecided means the preference has never been set; the promo may
	// still be shown.
	UserUndecided UserState = iota
	// UserEnabled means the user opted in.
	UserEnabled
	// UserDisabled means the user opted out.
	UserDisabled
)

func (s UserState) String() string {
	switch s {
	case UserUndecided:
		return "undecided"
	case UserEnabled:
		return "enabled"
	case UserDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Store is a synchronous named-scalar preference store. Missing keys read as
// zero. Implementations must be safe for use from a single event-loop
// goroutine; they are not required to be safe for concurrent use.
type Store interface {
	GetInt(key string) (int, error)
	SetInt(key string, value int) error
	GetInt64(key string) (int64, error)
	SetInt64(key string, value int64) error
	// Delete removes a key; deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// UserStateOf reads the opt-in decision from a store.
func UserStateOf(s Store) (UserState, error) {
	v, err := s.GetInt(KeyUserState)
	if err != nil {
		return UserUndecided, err
	}
	switch UserState(v) {
	case UserEnabled, UserDisabled:
		return UserState(v), nil
	default:
		return UserUndecided, nil
	}
}

// SetUserState writes the opt-in decision to a store.
func SetUserState(s Store, state UserState) error {
	return s.SetInt(KeyUserState, int(state))
}
