package scheduler

import "sort"

// Subjects returns every distinct subject named in either mapping, faculty first, in encounter order.
func Subjects(prefs Preferences) []string {
	seen := make(map[string]struct{})
	var subjects []string
	collect := func(items map[string]Preference) {
		for _, id := range sortedIDs(items) {
			subject := items[id].Subject
			if subject == "" {
				continue
			}
			if _, ok := seen[subject]; ok {
				continue
			}
			seen[subject] = struct{}{}
			subjects = append(subjects, subject)
		}
	}
	collect(prefs.Faculty)
	collect(prefs.Student)
	return subjects
}

// PriorityScore weights faculty demand twice as heavily as student demand.
func PriorityScore(prefs Preferences, subject string) int {
	return 2*countSubject(prefs.Faculty, subject) + countSubject(prefs.Student, subject)
}

// PriorityOrder sorts subjects by descending priority score. Ties keep encounter order.
func PriorityOrder(prefs Preferences) []string {
	subjects := Subjects(prefs)
	scores := make(map[string]int, len(subjects))
	for _, subject := range subjects {
		scores[subject] = PriorityScore(prefs, subject)
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		return scores[subjects[i]] > scores[subjects[j]]
	})
	return subjects
}

func countSubject(items map[string]Preference, subject string) int {
	count := 0
	for _, pref := range items {
		if pref.Subject == subject {
			count++
		}
	}
	return count
}

// sortedIDs makes map traversal reproducible.
func sortedIDs(items map[string]Preference) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func preferencesFor(items map[string]Preference, subject string) []Preference {
	var matched []Preference
	for _, id := range sortedIDs(items) {
		if pref := items[id]; pref.Subject == subject {
			matched = append(matched, pref)
		}
	}
	return matched
}
