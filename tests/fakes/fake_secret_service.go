package fakes

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/offsoc/libsecret/internal/session"
	"github.com/offsoc/libsecret/internal/transport"
)

// Object paths used by the fake service.
const (
	CollectionPrefix = "/org/freedesktop/secrets/collection/"
	AliasPrefix      = "/org/freedesktop/secrets/aliases/"
	SessionPrefix    = "/org/freedesktop/secrets/session/"
	PromptPrefix     = "/org/freedesktop/secrets/prompt/"
)

const (
	propLabel      = "org.freedesktop.Secret.Item.Label"
	propAttributes = "org.freedesktop.Secret.Item.Attributes"
	propLocked     = "org.freedesktop.Secret.Item.Locked"
	propCreated    = "org.freedesktop.Secret.Item.Created"
	propModified   = "org.freedesktop.Secret.Item.Modified"
)

// FakeItem is one stored secret.
type FakeItem struct {
	Path        dbus.ObjectPath
	Collection  dbus.ObjectPath
	Label       string
	Attributes  map[string]string
	Value       []byte
	ContentType string
	Locked      bool
	Created     time.Time
	Modified    time.Time
}

type fakePrompt struct {
	action func() dbus.Variant
}

type heldReply struct {
	reply transport.Reply
	after func()
}

type subscription struct {
	path   dbus.ObjectPath
	iface  string
	member string
	ch     chan []interface{}
}

// FakeSecretService is an in-process Secret Service. It implements
// transport.Conn and transport.SignalSource, answering requests from an
// in-memory store.
//
// Replies are delivered in request order unless a method is delayed or held.
type FakeSecretService struct {
	mu          sync.Mutex
	collections map[dbus.ObjectPath]bool
	aliases     map[string]dbus.ObjectPath
	items       map[dbus.ObjectPath]*FakeItem
	sessions    map[dbus.ObjectPath]*session.Session
	prompts     map[dbus.ObjectPath]*fakePrompt
	subs        map[int]*subscription
	nextID      int

	calls  map[string]int
	delays map[string]time.Duration
	held   map[string]bool
	queued []heldReply
	fail   map[string]error

	// AESSupported controls whether OpenSession accepts the encrypted algorithm.
	AESSupported bool
	// DismissPrompts makes every prompt complete as dismissed.
	DismissPrompts bool

	replies   chan transport.Reply
	done      chan struct{}
	closeOnce sync.Once
	err       error
	now       func() time.Time
}

// NewFakeSecretService creates a service with the "login" collection
// behind the default alias and an empty "session" collection.
func NewFakeSecretService() *FakeSecretService {
	f := &FakeSecretService{
		collections:  make(map[dbus.ObjectPath]bool),
		aliases:      make(map[string]dbus.ObjectPath),
		items:        make(map[dbus.ObjectPath]*FakeItem),
		sessions:     make(map[dbus.ObjectPath]*session.Session),
		prompts:      make(map[dbus.ObjectPath]*fakePrompt),
		subs:         make(map[int]*subscription),
		calls:        make(map[string]int),
		delays:       make(map[string]time.Duration),
		held:         make(map[string]bool),
		fail:         make(map[string]error),
		AESSupported: true,
		replies:      make(chan transport.Reply, 256),
		done:         make(chan struct{}),
		now:          time.Now,
	}
	f.AddCollection("login", "default")
	f.AddCollection("session", "session")
	return f
}

// AddCollection creates a collection, optionally reachable through alias.
func (f *FakeSecretService) AddCollection(name, alias string) dbus.ObjectPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := dbus.ObjectPath(CollectionPrefix + name)
	f.collections[path] = true
	if alias != "" {
		f.aliases[alias] = path
	}
	return path
}

// AddItem stores a secret directly, bypassing the protocol. collection may
// be a collection name or an alias.
func (f *FakeSecretService) AddItem(collection, label string, attrs map[string]string, value string, locked bool) dbus.ObjectPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll, ok := f.aliases[collection]
	if !ok {
		coll = dbus.ObjectPath(CollectionPrefix + collection)
	}
	item := f.newItemLocked(coll, label, copyAttrs(attrs), []byte(value), "text/plain")
	item.Locked = locked
	return item.Path
}

// Items returns a snapshot of the stored items, sorted by path.
func (f *FakeSecretService) Items() []FakeItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeItem, 0, len(f.items))
	for _, it := range f.items {
		cp := *it
		cp.Attributes = copyAttrs(it.Attributes)
		cp.Value = append([]byte(nil), it.Value...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return itemSeq(out[i].Path) < itemSeq(out[j].Path) })
	return out
}

// Calls returns how many times method (e.g. "SearchItems") was received.
func (f *FakeSecretService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of requests received.
func (f *FakeSecretService) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// SetDelay delays every reply to method by d. Delayed replies overtake
// earlier, slower ones, so this also reorders replies.
func (f *FakeSecretService) SetDelay(method string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[method] = d
}

// Hold queues replies to method until Release is called.
func (f *FakeSecretService) Hold(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[method] = true
}

// Release delivers every held reply, most recent first, and stops holding.
func (f *FakeSecretService) Release() {
	f.mu.Lock()
	queued := f.queued
	f.queued = nil
	f.held = make(map[string]bool)
	f.mu.Unlock()
	for i := len(queued) - 1; i >= 0; i-- {
		f.deliver(queued[i].reply)
		if queued[i].after != nil {
			go queued[i].after()
		}
	}
}

// Held returns the number of replies waiting for Release.
func (f *FakeSecretService) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

// FailNext makes the next call to method reply with err.
func (f *FakeSecretService) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

// Disconnect drops the connection as a vanished bus would.
func (f *FakeSecretService) Disconnect(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// Send implements transport.Conn.
func (f *FakeSecretService) Send(h transport.Handle, req transport.Request) error {
	select {
	case <-f.done:
		return transport.ErrDisconnected
	default:
	}

	f.mu.Lock()
	f.calls[req.Method]++
	var body []interface{}
	var err error
	var after func()
	if ferr, ok := f.fail[req.Method]; ok {
		delete(f.fail, req.Method)
		err = ferr
	} else {
		body, after, err = f.handleLocked(req)
	}
	reply := transport.Reply{Handle: h, Body: body, Err: err}
	delay := f.delays[req.Method]
	if f.held[req.Method] {
		f.queued = append(f.queued, heldReply{reply: reply, after: after})
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() {
			f.deliver(reply)
			if after != nil {
				after()
			}
		})
		return nil
	}
	f.deliver(reply)
	if after != nil {
		go after()
	}
	return nil
}

// Replies implements transport.Conn.
func (f *FakeSecretService) Replies() <-chan transport.Reply { return f.replies }

// Done implements transport.Conn.
func (f *FakeSecretService) Done() <-chan struct{} { return f.done }

// Err implements transport.Conn.
func (f *FakeSecretService) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close implements transport.Conn.
func (f *FakeSecretService) Close() error {
	f.Disconnect(nil)
	return nil
}

// Subscribe implements transport.SignalSource.
func (f *FakeSecretService) Subscribe(ctx context.Context, path dbus.ObjectPath, iface, member string) (<-chan []interface{}, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	sub := &subscription{path: path, iface: iface, member: member, ch: make(chan []interface{}, 4)}
	f.subs[id] = sub
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
	return sub.ch, cancel, nil
}

func (f *FakeSecretService) deliver(r transport.Reply) {
	select {
	case f.replies <- r:
	case <-f.done:
	}
}

func (f *FakeSecretService) emit(path dbus.ObjectPath, iface, member string, body ...interface{}) {
	f.mu.Lock()
	var targets []chan []interface{}
	for _, s := range f.subs {
		if s.path == path && s.iface == iface && s.member == member {
			targets = append(targets, s.ch)
		}
	}
	f.mu.Unlock()
	for _, ch := range targets {
		select {
		case ch <- body:
		default:
		}
	}
}

// handleLocked answers req. after, if set, runs once the reply is delivered.
func (f *FakeSecretService) handleLocked(req transport.Request) (body []interface{}, after func(), err error) {
	switch req.Interface {
	case transport.ServiceInterface:
		if req.Path != transport.ServicePath {
			return nil, nil, unknownObject(req.Path)
		}
		return f.service(req)
	case transport.CollectionIface:
		return f.collection(req)
	case transport.ItemInterface:
		return f.item(req)
	case transport.PromptInterface:
		return f.prompt(req)
	case transport.PropertiesIface:
		return f.properties(req)
	}
	return nil, nil, unknownMethod(req)
}

func (f *FakeSecretService) service(req transport.Request) ([]interface{}, func(), error) {
	switch req.Method {
	case "OpenSession":
		var algorithm string
		var input dbus.Variant
		if err := dbus.Store(req.Args, &algorithm, &input); err != nil {
			return nil, nil, invalidArgs(err)
		}
		if algorithm == session.AlgorithmAES && !f.AESSupported {
			return nil, nil, transport.NewError(transport.ErrNameNotSupported, "algorithm not supported")
		}
		f.nextID++
		path := dbus.ObjectPath(fmt.Sprintf("%s%d", SessionPrefix, f.nextID))
		sess, output, err := session.Accept(algorithm, input, path, rand.Reader)
		if err != nil {
			return nil, nil, transport.NewError(transport.ErrNameNotSupported, err.Error())
		}
		f.sessions[path] = sess
		return []interface{}{output, path}, nil, nil

	case "SearchItems":
		var attrs map[string]string
		if err := dbus.Store(req.Args, &attrs); err != nil {
			return nil, nil, invalidArgs(err)
		}
		unlocked := []dbus.ObjectPath{}
		locked := []dbus.ObjectPath{}
		for _, it := range f.sortedItemsLocked() {
			if !matches(it.Attributes, attrs) {
				continue
			}
			if it.Locked {
				locked = append(locked, it.Path)
			} else {
				unlocked = append(unlocked, it.Path)
			}
		}
		return []interface{}{unlocked, locked}, nil, nil

	case "Unlock":
		var objects []dbus.ObjectPath
		if err := dbus.Store(req.Args, &objects); err != nil {
			return nil, nil, invalidArgs(err)
		}
		unlocked := []dbus.ObjectPath{}
		var pending []dbus.ObjectPath
		for _, p := range objects {
			it, ok := f.items[p]
			if !ok {
				continue
			}
			if it.Locked {
				pending = append(pending, p)
			} else {
				unlocked = append(unlocked, p)
			}
		}
		if len(pending) == 0 {
			return []interface{}{unlocked, dbus.ObjectPath("/")}, nil, nil
		}
		prompt := f.newPromptLocked(func() dbus.Variant {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, p := range pending {
				if it, ok := f.items[p]; ok {
					it.Locked = false
				}
			}
			return dbus.MakeVariant(pending)
		})
		return []interface{}{unlocked, prompt}, nil, nil

	case "GetSecrets":
		var paths []dbus.ObjectPath
		var sessPath dbus.ObjectPath
		if err := dbus.Store(req.Args, &paths, &sessPath); err != nil {
			return nil, nil, invalidArgs(err)
		}
		sess, ok := f.sessions[sessPath]
		if !ok {
			return nil, nil, transport.NewError(transport.ErrNameNoSession, "no such session")
		}
		out := make(map[dbus.ObjectPath]session.Secret)
		for _, p := range paths {
			it, ok := f.items[p]
			if !ok || it.Locked {
				continue
			}
			sec, err := sess.Encode(it.Value, it.ContentType)
			if err != nil {
				return nil, nil, err
			}
			out[p] = sec
		}
		return []interface{}{out}, nil, nil
	}
	return nil, nil, unknownMethod(req)
}

func (f *FakeSecretService) collection(req transport.Request) ([]interface{}, func(), error) {
	coll, ok := f.resolveLocked(req.Path)
	if !ok {
		return nil, nil, transport.NewError(transport.ErrNameNoSuchObject, "no such collection "+string(req.Path))
	}
	if req.Method != "CreateItem" {
		return nil, nil, unknownMethod(req)
	}
	var props map[string]dbus.Variant
	var sec session.Secret
	var replace bool
	if err := dbus.Store(req.Args, &props, &sec, &replace); err != nil {
		return nil, nil, invalidArgs(err)
	}
	sess, ok := f.sessions[sec.Session]
	if !ok {
		return nil, nil, transport.NewError(transport.ErrNameNoSession, "no such session")
	}
	value, contentType, err := sess.Decode(sec)
	if err != nil {
		return nil, nil, transport.NewError(transport.ErrNameInvalidArgs, err.Error())
	}

	var label string
	if v, ok := props[propLabel]; ok {
		label, _ = v.Value().(string)
	}
	attrs := map[string]string{}
	if v, ok := props[propAttributes]; ok {
		if err := dbus.Store([]interface{}{v.Value()}, &attrs); err != nil {
			return nil, nil, invalidArgs(err)
		}
	}

	if replace {
		for _, it := range f.sortedItemsLocked() {
			if it.Collection == coll && equalAttrs(it.Attributes, attrs) {
				it.Label = label
				it.Value = value
				it.ContentType = contentType
				it.Modified = f.now()
				return []interface{}{it.Path, dbus.ObjectPath("/")}, nil, nil
			}
		}
	}
	it := f.newItemLocked(coll, label, attrs, value, contentType)
	return []interface{}{it.Path, dbus.ObjectPath("/")}, nil, nil
}

func (f *FakeSecretService) item(req transport.Request) ([]interface{}, func(), error) {
	it, ok := f.items[req.Path]
	if !ok {
		return nil, nil, unknownObject(req.Path)
	}
	if req.Method != "Delete" {
		return nil, nil, unknownMethod(req)
	}
	if it.Locked {
		return nil, nil, transport.NewError(transport.ErrNameIsLocked, "item is locked")
	}
	delete(f.items, it.Path)
	return []interface{}{dbus.ObjectPath("/")}, nil, nil
}

func (f *FakeSecretService) properties(req transport.Request) ([]interface{}, func(), error) {
	it, ok := f.items[req.Path]
	if !ok {
		return nil, nil, unknownObject(req.Path)
	}
	if req.Method != "GetAll" {
		return nil, nil, unknownMethod(req)
	}
	props := map[string]dbus.Variant{
		propLabel:      dbus.MakeVariant(it.Label),
		propAttributes: dbus.MakeVariant(copyAttrs(it.Attributes)),
		propLocked:     dbus.MakeVariant(it.Locked),
		propCreated:    dbus.MakeVariant(uint64(it.Created.Unix())),
		propModified:   dbus.MakeVariant(uint64(it.Modified.Unix())),
	}
	return []interface{}{props}, nil, nil
}

func (f *FakeSecretService) prompt(req transport.Request) ([]interface{}, func(), error) {
	p, ok := f.prompts[req.Path]
	if !ok {
		return nil, nil, unknownObject(req.Path)
	}
	path := req.Path
	switch req.Method {
	case "Prompt":
		delete(f.prompts, path)
		dismissed := f.DismissPrompts
		return []interface{}{}, func() {
			result := dbus.MakeVariant("")
			if !dismissed {
				result = p.action()
			}
			f.emit(path, transport.PromptInterface, "Completed", dismissed, result)
		}, nil
	case "Dismiss":
		delete(f.prompts, path)
		return []interface{}{}, func() {
			f.emit(path, transport.PromptInterface, "Completed", true, dbus.MakeVariant(""))
		}, nil
	}
	return nil, nil, unknownMethod(req)
}

func (f *FakeSecretService) resolveLocked(path dbus.ObjectPath) (dbus.ObjectPath, bool) {
	s := string(path)
	if strings.HasPrefix(s, AliasPrefix) {
		target, ok := f.aliases[strings.TrimPrefix(s, AliasPrefix)]
		return target, ok
	}
	return path, f.collections[path]
}

func (f *FakeSecretService) newItemLocked(coll dbus.ObjectPath, label string, attrs map[string]string, value []byte, contentType string) *FakeItem {
	f.nextID++
	now := f.now()
	it := &FakeItem{
		Path:        dbus.ObjectPath(fmt.Sprintf("%s/%d", coll, f.nextID)),
		Collection:  coll,
		Label:       label,
		Attributes:  attrs,
		Value:       value,
		ContentType: contentType,
		Created:     now,
		Modified:    now,
	}
	f.items[it.Path] = it
	return it
}

func (f *FakeSecretService) newPromptLocked(action func() dbus.Variant) dbus.ObjectPath {
	f.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("%s%d", PromptPrefix, f.nextID))
	f.prompts[path] = &fakePrompt{action: action}
	return path
}

// sortedItemsLocked returns items in creation order.
func (f *FakeSecretService) sortedItemsLocked() []*FakeItem {
	out := make([]*FakeItem, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return itemSeq(out[i].Path) < itemSeq(out[j].Path) })
	return out
}

func itemSeq(p dbus.ObjectPath) int {
	s := string(p)
	n, _ := strconv.Atoi(s[strings.LastIndex(s, "/")+1:])
	return n
}

func matches(item, query map[string]string) bool {
	for k, v := range query {
		if item[k] != v {
			return false
		}
	}
	return true
}

func equalAttrs(a, b map[string]string) bool {
	return len(a) == len(b) && matches(a, b)
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func unknownObject(path dbus.ObjectPath) error {
	return transport.NewError(transport.ErrNameUnknownObject, "no such object "+string(path))
}

func unknownMethod(req transport.Request) error {
	return transport.NewError(transport.ErrNameUnknownMethod, "unknown method "+req.Member())
}

func invalidArgs(err error) error {
	return transport.NewError(transport.ErrNameInvalidArgs, err.Error())
}

var (
	_ transport.Conn         = (*FakeSecretService)(nil)
	_ transport.SignalSource = (*FakeSecretService)(nil)
)

// ServiceError builds an error reply, for use with FailNext.
func ServiceError(name, message string) error {
	return transport.NewError(name, message)
}
