package roomclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"github.com/meshvoice/roomclient/protocol"
)

// Client is the connection manager: it owns the persistent control channel,
// the transaction table, the single publisher handle and the subscriber set
// keyed by feed id. One Client instance owns its maps for its lifetime.
type Client struct {
	opts  Options
	log   logging.LeveledLogger
	calls *transactionTable

	mu            sync.Mutex
	state         connState
	conn          *websocket.Conn
	attempt       *connectAttempt
	stopKeepalive chan struct{}
	closed        bool
	events        []*protocol.Envelope
	eventSignal   chan struct{}
	done          chan struct{}

	roomID      string
	publisher   *Publisher
	subscribers map[string]*Subscriber

	writeMu sync.Mutex
}

// NewClient validates the options and builds a disconnected client. Call
// Connect (or any operation, which connects on demand) to open the channel.
func NewClient(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		opts:        opts,
		log:         opts.LoggerFactory.NewLogger("roomclient"),
		calls:       newTransactionTable(),
		subscribers: make(map[string]*Subscriber),
		eventSignal: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	go c.eventLoop()
	return c, nil
}

// Publisher returns the active publisher handle, or nil before Join.
func (c *Client) Publisher() *Publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publisher
}

// Subscribers returns a snapshot of the current subscriber handles.
func (c *Client) Subscribers() []*Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		out = append(out, s)
	}
	return out
}

// Join enters a room: any previous publisher is terminated (errors isolated),
// a new one is negotiated end to end, surfaced through Options.OnPublisher,
// and the room's current publisher roster is mirrored into subscribers.
func (c *Client) Join(ctx context.Context, roomID string) error {
	c.mu.Lock()
	old := c.publisher
	c.publisher = nil
	c.roomID = roomID
	c.mu.Unlock()

	if old != nil {
		if err := old.Terminate(ctx); err != nil {
			c.reportError(fmt.Errorf("terminate previous publisher: %w", err))
		}
	}

	mt, err := c.opts.NewTransport()
	if err != nil {
		err = fmt.Errorf("join %s: media transport: %w", roomID, err)
		c.reportError(err)
		return err
	}
	pub := newPublisher(c, mt, roomID, c.opts.LocalTracks, c.opts.LoggerFactory, c.reportError)

	roster, err := pub.initialize(ctx)
	if err != nil {
		err = fmt.Errorf("join %s: %w", roomID, err)
		c.reportError(err)
		if terr := pub.Terminate(ctx); terr != nil {
			c.reportError(fmt.Errorf("terminate failed publisher: %w", terr))
		}
		return err
	}

	c.mu.Lock()
	c.publisher = pub
	c.mu.Unlock()

	if c.opts.OnPublisher != nil {
		c.opts.OnPublisher(pub)
	}
	c.addSubscribers(roster)
	return nil
}

// Leave tears down the publisher and every subscriber without closing the
// control channel. Failures are isolated and reported to the error sink.
func (c *Client) Leave(ctx context.Context) {
	c.cleanup(ctx)
}

// Close closes the control channel and tears down every handle. The first
// call wins; later calls return immediately.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	close(c.done)

	if conn != nil {
		c.handleClose(conn)
	} else {
		c.cleanup(context.Background())
	}
	return nil
}

// Mute disables the published audio.
func (c *Client) Mute(ctx context.Context) error {
	return c.configurePublisher(ctx, boolPtr(false), nil)
}

// Unmute re-enables the published audio.
func (c *Client) Unmute(ctx context.Context) error {
	return c.configurePublisher(ctx, boolPtr(true), nil)
}

// Pause stops the published video.
func (c *Client) Pause(ctx context.Context) error {
	return c.configurePublisher(ctx, nil, boolPtr(false))
}

// Resume restarts the published video.
func (c *Client) Resume(ctx context.Context) error {
	return c.configurePublisher(ctx, nil, boolPtr(true))
}

func (c *Client) configurePublisher(ctx context.Context, audio, video *bool) error {
	pub := c.Publisher()
	if pub == nil {
		return ErrNoPublisher
	}
	return pub.Configure(ctx, ConfigureRequest{Audio: audio, Video: video})
}

// Rooms asks the gateway for its room listing. The load shape is
// gateway-defined and returned verbatim.
func (c *Client) Rooms(ctx context.Context) (json.RawMessage, error) {
	env, err := c.transact(ctx, protocol.TypeRooms, nil)
	if err != nil {
		return nil, err
	}
	return env.Load, nil
}

// CreateRoom asks the gateway to create a room with the given description.
func (c *Client) CreateRoom(ctx context.Context, description string) (json.RawMessage, error) {
	env, err := c.transact(ctx, protocol.TypeCreateRoom, protocol.CreateRoomLoad{Description: description})
	if err != nil {
		return nil, err
	}
	return env.Load, nil
}

// cleanup best-effort terminates the publisher and every subscriber, then
// empties the subscriber set. Each handle gets its termination attempt even
// when a sibling step failed; failures land in the error sink.
func (c *Client) cleanup(ctx context.Context) {
	c.mu.Lock()
	pub := c.publisher
	c.publisher = nil
	subs := make([]*Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.subscribers = make(map[string]*Subscriber)
	c.mu.Unlock()

	steps := make([]func() error, 0, len(subs)+1)
	if pub != nil {
		c.log.Infof("terminating publisher %d", pub.HandleID())
		steps = append(steps, func() error { return pub.Terminate(ctx) })
	}
	for _, s := range subs {
		sub := s
		c.log.Infof("terminating subscriber %d (feed %s)", sub.HandleID(), sub.Feed())
		steps = append(steps, func() error {
			sub.emit(SessionEvent{Kind: EventLeaving})
			return sub.Terminate(ctx)
		})
	}
	if err := runAll(steps...); err != nil {
		c.reportError(fmt.Errorf("cleanup: %w", err))
	}
}

// removeSubscriber is handed to each subscriber as its owner notification.
func (c *Client) removeSubscriber(feed string) {
	c.mu.Lock()
	delete(c.subscribers, feed)
	c.mu.Unlock()
}

// reportError forwards an error to the application-supplied sink.
func (c *Client) reportError(err error) {
	if err == nil {
		return
	}
	c.log.Errorf("%v", err)
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

func boolPtr(v bool) *bool { return &v }
