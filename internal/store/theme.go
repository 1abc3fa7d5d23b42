package store

import "context"

// ThemeLight is the only persisted theme value; an absent slot means dark.
const ThemeLight = "light"

// Theme returns the persisted theme preference, or "" for the default
// (dark). A corrupt or missing slot is the default, never an error.
func (s *Store) Theme(ctx context.Context) string {
	value, ok, err := s.slots.Get(ctx, ThemeSlot)
	if err != nil || !ok {
		return ""
	}
	if string(value) == ThemeLight {
		return ThemeLight
	}
	return ""
}

// SetTheme persists the theme preference. Anything other than "light"
// clears the slot back to the default.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight {
		return s.slots.Delete(ctx, ThemeSlot)
	}
	return s.slots.Put(ctx, ThemeSlot, []byte(ThemeLight))
}
