package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDatabase is an in-process Database with MongoDB update and query
// semantics for the operator subset the store uses. Each collection
// serializes its writes, so single-document updates are atomic.
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string]*memoryCollection)}
}

func (d *MemoryDatabase) Collection(name string) Collection {
	d.mu.Lock()
	defer d.mu.Unlock()

	coll, ok := d.collections[name]
	if !ok {
		coll = &memoryCollection{unique: uniqueKeys[name]}
		d.collections[name] = coll
	}
	return coll
}

func (d *MemoryDatabase) Ping(context.Context) error { return nil }

type memoryCollection struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique []string
}

func (c *memoryCollection) InsertOne(_ context.Context, doc any) error {
	normalized, err := toDocument(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkUnique(normalized, -1); err != nil {
		return err
	}
	c.docs = append(c.docs, normalized)
	return nil
}

func (c *memoryCollection) FindOne(_ context.Context, filter bson.M, out any) error {
	query, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if matches(doc, query) {
			return decode(doc, out)
		}
	}
	return ErrNoDocuments
}

func (c *memoryCollection) Find(_ context.Context, filter bson.M, opts FindOptions, out any) error {
	query, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	c.mu.RLock()
	found := make([]bson.M, 0)
	for _, doc := range c.docs {
		if matches(doc, query) {
			found = append(found, doc)
		}
	}
	c.mu.RUnlock()

	if opts.SortField != "" {
		sort.SliceStable(found, func(i, j int) bool {
			a, _ := lookup(found[i], opts.SortField)
			b, _ := lookup(found[j], opts.SortField)
			cmp := compareValues(a, b)
			if opts.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	slice := reflect.ValueOf(out)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return errors.New("memory: Find output must be a pointer to a slice")
	}
	items := reflect.MakeSlice(slice.Elem().Type(), 0, len(found))
	for _, doc := range found {
		item := reflect.New(slice.Elem().Type().Elem())
		if err := decode(doc, item.Interface()); err != nil {
			return err
		}
		items = reflect.Append(items, item.Elem())
	}
	slice.Elem().Set(items)
	return nil
}

func (c *memoryCollection) FindOneAndUpdate(_ context.Context, filter bson.M, update Update, out any) error {
	updated, err := c.update(filter, update)
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrNoDocuments
	}
	return decode(updated, out)
}

func (c *memoryCollection) UpdateOne(_ context.Context, filter bson.M, update Update) (int64, error) {
	updated, err := c.update(filter, update)
	if err != nil {
		return 0, err
	}
	if updated == nil {
		return 0, nil
	}
	return 1, nil
}

func (c *memoryCollection) update(filter bson.M, update Update) (bson.M, error) {
	if update.IsEmpty() {
		return nil, errEmptyUpdate
	}
	query, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if !matches(doc, query) {
			continue
		}
		next, err := applyUpdate(doc, update)
		if err != nil {
			return nil, err
		}
		if err := c.checkUnique(next, i); err != nil {
			return nil, err
		}
		c.docs[i] = next
		return next, nil
	}
	return nil, nil
}

func (c *memoryCollection) DeleteOne(_ context.Context, filter bson.M) (int64, error) {
	query, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if matches(doc, query) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *memoryCollection) CountDocuments(_ context.Context, filter bson.M) (int64, error) {
	query, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	for _, doc := range c.docs {
		if matches(doc, query) {
			count++
		}
	}
	return count, nil
}

func (c *memoryCollection) checkUnique(doc bson.M, skip int) error {
	for _, field := range c.unique {
		value, ok := doc[field]
		if !ok || value == nil {
			continue
		}
		for i, other := range c.docs {
			if i != skip && valuesEqual(other[field], value) {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, field)
			}
		}
	}
	return nil
}

// toDocument round-trips v through BSON so stored values carry the same types
// the driver would hand back (DateTime, int32/int64, bson.M, bson.A).
func toDocument(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizeValue(v any) (any, error) {
	doc, err := toDocument(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

func normalizeFilter(filter bson.M) (bson.M, error) {
	if filter == nil {
		return bson.M{}, nil
	}
	return toDocument(filter)
}

func decode(doc bson.M, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, out)
}

func lookup(doc bson.M, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	value, ok := doc[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return value, true
	}
	switch typed := value.(type) {
	case bson.M:
		return lookup(typed, rest)
	case primitive.A:
		collected := primitive.A{}
		for _, element := range typed {
			if sub, ok := element.(bson.M); ok {
				if v, ok := lookup(sub, rest); ok {
					collected = append(collected, v)
				}
			}
		}
		return collected, len(collected) > 0
	}
	return nil, false
}

func matches(doc bson.M, query bson.M) bool {
	for key, condition := range query {
		if key == "$or" {
			clauses, _ := condition.(primitive.A)
			matched := false
			for _, clause := range clauses {
				if sub, ok := clause.(bson.M); ok && matches(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}

		value, present := lookup(doc, key)
		if ops, ok := condition.(bson.M); ok && isOperatorDoc(ops) {
			if !matchOperators(value, present, ops) {
				return false
			}
			continue
		}
		if !matchEquals(value, present, condition) {
			return false
		}
	}
	return true
}

func isOperatorDoc(m bson.M) bool {
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return false
		}
	}
	return len(m) > 0
}

func matchOperators(value any, present bool, ops bson.M) bool {
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !matchEquals(value, present, arg) {
				return false
			}
		case "$ne":
			if matchEquals(value, present, arg) {
				return false
			}
		case "$in":
			if !matchIn(value, present, arg) {
				return false
			}
		case "$nin":
			if matchIn(value, present, arg) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if (present && value != nil) != want {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !present || value == nil {
				return false
			}
			cmp := compareValues(value, arg)
			if (op == "$gt" && cmp <= 0) || (op == "$gte" && cmp < 0) ||
				(op == "$lt" && cmp >= 0) || (op == "$lte" && cmp > 0) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matchEquals follows MongoDB equality: null matches a missing field and an
// array field matches when any element is equal.
func matchEquals(value any, present bool, want any) bool {
	if want == nil {
		return !present || value == nil
	}
	if !present {
		return false
	}
	if valuesEqual(value, want) {
		return true
	}
	if arr, ok := value.(primitive.A); ok {
		for _, element := range arr {
			if valuesEqual(element, want) {
				return true
			}
		}
	}
	return false
}

func matchIn(value any, present bool, arg any) bool {
	candidates, _ := arg.(primitive.A)
	for _, candidate := range candidates {
		if matchEquals(value, present, candidate) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareValues(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	// nil sorts first, as in MongoDB.
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}

func applyUpdate(doc bson.M, update Update) (bson.M, error) {
	next, err := toDocument(doc)
	if err != nil {
		return nil, err
	}

	if len(update.Set) > 0 {
		set, err := toDocument(update.Set)
		if err != nil {
			return nil, err
		}
		for path, value := range set {
			setPath(next, path, value)
		}
	}
	for _, path := range update.Unset {
		unsetPath(next, path)
	}
	for path, delta := range update.Inc {
		d, err := normalizeValue(delta)
		if err != nil {
			return nil, err
		}
		current, _ := lookup(next, path)
		setPath(next, path, addNumbers(current, d))
	}
	for path, element := range update.AddToSet {
		e, err := normalizeValue(element)
		if err != nil {
			return nil, err
		}
		current, _ := lookup(next, path)
		arr, _ := current.(primitive.A)
		exists := false
		for _, item := range arr {
			if reflect.DeepEqual(item, e) {
				exists = true
				break
			}
		}
		if !exists {
			arr = append(arr, e)
		}
		setPath(next, path, arr)
	}
	for path, condition := range update.Pull {
		c, err := normalizeValue(condition)
		if err != nil {
			return nil, err
		}
		current, _ := lookup(next, path)
		arr, ok := current.(primitive.A)
		if !ok {
			continue
		}
		kept := primitive.A{}
		for _, item := range arr {
			if pullMatches(item, c) {
				continue
			}
			kept = append(kept, item)
		}
		setPath(next, path, kept)
	}
	return next, nil
}

func pullMatches(item, condition any) bool {
	if query, ok := condition.(bson.M); ok {
		if sub, ok := item.(bson.M); ok {
			return matches(sub, query)
		}
		return false
	}
	return valuesEqual(item, condition)
}

func addNumbers(current, delta any) any {
	ci, cInt := toInt(current)
	di, dInt := toInt(delta)
	if (current == nil || cInt) && dInt {
		return ci + di
	}
	cf, _ := toFloat(current)
	df, _ := toFloat(delta)
	return cf + df
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func setPath(doc bson.M, path string, value any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		doc[head] = value
		return
	}
	child, ok := doc[head].(bson.M)
	if !ok {
		child = bson.M{}
		doc[head] = child
	}
	setPath(child, rest, value)
}

func unsetPath(doc bson.M, path string) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		delete(doc, head)
		return
	}
	if child, ok := doc[head].(bson.M); ok {
		unsetPath(child, rest)
	}
}
