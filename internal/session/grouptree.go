package session

import (
	"sort"
	"strings"
)

// GroupTree maps a "/"-separated group path to its UI state. A group
// exists iff it is named by some instance's GroupPath, was explicitly
// created, or appears in a persisted groups list.
type GroupTree struct {
	Groups map[string]*GroupState `yaml:"groups" json:"groups"`
}

type GroupState struct {
	Collapsed bool `yaml:"collapsed" json:"collapsed"`
}

func NewGroupTree() *GroupTree {
	return &GroupTree{Groups: map[string]*GroupState{}}
}

func (t *GroupTree) Ensure(path string) {
	if path == "" {
		return
	}
	if _, ok := t.Groups[path]; !ok {
		t.Groups[path] = &GroupState{}
	}
}

func (t *GroupTree) Remove(path string) {
	delete(t.Groups, path)
}

func (t *GroupTree) SetCollapsed(path string, collapsed bool) {
	t.Ensure(path)
	t.Groups[path].Collapsed = collapsed
}

// Reconcile rebuilds group membership from instance GroupPath values
// while preserving explicit groups and their collapsed state, since the
// group tree is re-derivable from instances plus explicit groups.
func (t *GroupTree) Reconcile(instances []*Instance) {
	for _, inst := range instances {
		t.Ensure(inst.GroupPath)
	}
}

func depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

// FlatItem is either a group header or an instance row in the flattened
// list produced by FlattenTree.
type FlatItem struct {
	IsGroup   bool
	GroupPath string
	Depth     int
	Collapsed bool
	Instance  *Instance
}

// FlattenTree produces an ordered list interleaving group headers (with
// collapsed flag and nested depth) with the instances belonging to each
// group, followed by ungrouped instances.
func FlattenTree(tree *GroupTree, instances []*Instance) []FlatItem {
	byGroup := map[string][]*Instance{}
	var ungrouped []*Instance
	for _, inst := range instances {
		if inst.GroupPath == "" {
			ungrouped = append(ungrouped, inst)
		} else {
			byGroup[inst.GroupPath] = append(byGroup[inst.GroupPath], inst)
		}
	}

	var groupPaths []string
	for p := range tree.Groups {
		groupPaths = append(groupPaths, p)
	}
	sort.Strings(groupPaths)

	var items []FlatItem
	for _, p := range groupPaths {
		state := tree.Groups[p]
		items = append(items, FlatItem{
			IsGroup:   true,
			GroupPath: p,
			Depth:     depth(p),
			Collapsed: state.Collapsed,
		})
		if state.Collapsed {
			continue
		}
		members := byGroup[p]
		sort.Slice(members, func(i, j int) bool { return members[i].Title < members[j].Title })
		for _, m := range members {
			items = append(items, FlatItem{Instance: m, Depth: depth(p) + 1})
		}
	}

	sort.Slice(ungrouped, func(i, j int) bool { return ungrouped[i].Title < ungrouped[j].Title })
	for _, m := range ungrouped {
		items = append(items, FlatItem{Instance: m})
	}

	return items
}

// Search filters a flattened list case-insensitively against title, path,
// and group names.
func Search(items []FlatItem, query string) []FlatItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []FlatItem
	for _, item := range items {
		if item.IsGroup {
			if strings.Contains(strings.ToLower(item.GroupPath), q) {
				out = append(out, item)
			}
			continue
		}
		if item.Instance != nil && item.Instance.MatchesSearch(q) {
			out = append(out, item)
		}
	}
	return out
}
