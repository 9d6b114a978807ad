// Package rosset provides small string-set helpers used when diffing
// publisher/subscriber lists and building sorted, deterministic RPC
// responses (getSystemState, getPublishedTopics, ...).
package rosset

import "sort"

// Contains reports whether key is present in array.
func Contains(array []string, key string) bool {
	for _, item := range array {
		if item == key {
			return true
		}
	}
	return false
}

// Unique returns the sorted set of distinct elements in array.
func Unique(array []string) []string {
	set := map[string]struct{}{}
	for _, item := range array {
		set[item] = struct{}{}
	}
	return sortedKeys(set)
}

// Union returns the sorted union of lhs and rhs.
func Union(lhs, rhs []string) []string {
	set := map[string]struct{}{}
	for _, item := range lhs {
		set[item] = struct{}{}
	}
	for _, item := range rhs {
		set[item] = struct{}{}
	}
	return sortedKeys(set)
}

// Difference returns the sorted set of elements present in lhs but not rhs.
func Difference(lhs, rhs []string) []string {
	left := map[string]struct{}{}
	for _, item := range lhs {
		left[item] = struct{}{}
	}
	for _, item := range rhs {
		delete(left, item)
	}
	return sortedKeys(left)
}

func sortedKeys(set map[string]struct{}) []string {
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
