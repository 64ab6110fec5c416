package addrspace

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	appErrors "uacommander/internal/errors"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"
)

// OPCUAConfig configures a live server connection.
type OPCUAConfig struct {
	Endpoint           string
	SecurityMode       string
	SecurityPolicy     string
	UserName           string
	Password           string
	PublishingInterval time.Duration
	SamplingInterval   time.Duration
	QueueSize          uint32
}

type monitoredItem struct {
	handle uint32
	itemID uint32
}

type opcuaClient struct {
	cfg  OPCUAConfig
	conn *opcua.Client

	mu         sync.Mutex
	sub        *opcua.Subscription
	notify     chan *opcua.PublishNotificationData
	items      map[string]monitoredItem
	handles    map[uint32]string
	nextHandle uint32

	changes chan ValueChange
	runCtx  context.Context
	stop    context.CancelFunc
}

// DialOPCUA connects to the server described by cfg and opens a session.
func DialOPCUA(ctx context.Context, cfg OPCUAConfig) (Client, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	conn, err := opcua.NewClient(cfg.Endpoint, opts...)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeConnectionFailed, "create client for "+cfg.Endpoint, err)
	}
	logger.Logf("connecting to %s (mode %s, policy %s)", cfg.Endpoint, cfg.SecurityMode, cfg.SecurityPolicy)
	if err := conn.Connect(ctx); err != nil {
		return nil, appErrors.New(appErrors.CodeConnectionFailed, "connect to "+cfg.Endpoint, err)
	}
	runCtx, stop := context.WithCancel(context.Background())
	return &opcuaClient{
		cfg:     cfg,
		conn:    conn,
		items:   make(map[string]monitoredItem),
		handles: make(map[uint32]string),
		changes: make(chan ValueChange, 256),
		runCtx:  runCtx,
		stop:    stop,
	}, nil
}

// clientOptions picks the server endpoint matching the requested security
// mode and policy and configures authentication for it.
func clientOptions(ctx context.Context, cfg OPCUAConfig) ([]opcua.Option, error) {
	mode, err := ParseSecurityMode(cfg.SecurityMode)
	if err != nil {
		return nil, err
	}
	policyURI := SecurityPolicyURI(cfg.SecurityPolicy)

	endpoints, err := opcua.GetEndpoints(ctx, cfg.Endpoint)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeConnectionFailed, "get endpoints from "+cfg.Endpoint, err)
	}
	var ep *ua.EndpointDescription
	for _, candidate := range endpoints {
		if candidate.SecurityMode == mode && candidate.SecurityPolicyURI == policyURI {
			ep = candidate
			break
		}
	}
	if ep == nil {
		return nil, appErrors.New(appErrors.CodeConnectionFailed,
			fmt.Sprintf("server offers no endpoint with security mode %s and policy %s", cfg.SecurityMode, cfg.SecurityPolicy), nil)
	}

	tokenType := ua.UserTokenTypeAnonymous
	auth := opcua.AuthAnonymous()
	if cfg.UserName != "" && cfg.Password != "" {
		tokenType = ua.UserTokenTypeUserName
		auth = opcua.AuthUsername(cfg.UserName, cfg.Password)
	}
	opts := []opcua.Option{
		opcua.SecurityFromEndpoint(ep, tokenType),
		auth,
		opcua.ApplicationURI(applicationURI),
	}
	if mode != ua.MessageSecurityModeNone {
		cert, key, err := selfSignedCertificate()
		if err != nil {
			return nil, appErrors.New(appErrors.CodeConnectionFailed, "create client certificate", err)
		}
		opts = append(opts, opcua.Certificate(cert), opcua.PrivateKey(key))
	}
	return opts, nil
}

// ParseSecurityMode accepts None, Sign and SignAndEncrypt in any case.
func ParseSecurityMode(s string) (ua.MessageSecurityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ua.MessageSecurityModeNone, nil
	case "sign":
		return ua.MessageSecurityModeSign, nil
	case "signandencrypt":
		return ua.MessageSecurityModeSignAndEncrypt, nil
	default:
		return ua.MessageSecurityModeInvalid, appErrors.New(appErrors.CodeConfigurationError,
			fmt.Sprintf("invalid security mode %q, should be one of None Sign SignAndEncrypt", s), nil)
	}
}

// SecurityPolicyURI expands a short policy name such as Basic256 to its URI.
func SecurityPolicyURI(policy string) string {
	policy = strings.TrimSpace(policy)
	if policy == "" {
		policy = "None"
	}
	if strings.HasPrefix(policy, "http://") {
		return policy
	}
	return "http://opcfoundation.org/UA/SecurityPolicy#" + policy
}

func (c *opcuaClient) Browse(ctx context.Context, nodeID string) ([]Reference, error) {
	nid, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeInvalidNodeID, "parse "+nodeID, err)
	}
	var out []Reference
	for _, kind := range BrowseKinds {
		refs, err := c.browseKind(ctx, nid, kind)
		if err != nil {
			return nil, appErrors.New(appErrors.CodeBrowseFailed, fmt.Sprintf("browse %s (%s)", nodeID, kind), err)
		}
		out = append(out, refs...)
	}
	return out, nil
}

func (c *opcuaClient) browseKind(ctx context.Context, nid *ua.NodeID, kind ReferenceKind) ([]Reference, error) {
	refType := uint32(id.Organizes)
	if kind == KindAggregates {
		refType = id.Aggregates
	}
	req := &ua.BrowseRequest{
		View: &ua.ViewDescription{ViewID: ua.NewTwoByteNodeID(0)},
		NodesToBrowse: []*ua.BrowseDescription{{
			NodeID:          nid,
			BrowseDirection: ua.BrowseDirectionForward,
			ReferenceTypeID: ua.NewNumericNodeID(0, refType),
			IncludeSubtypes: true,
			ResultMask:      0x3f,
		}},
	}
	resp, err := c.conn.Browse(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != 1 {
		return nil, fmt.Errorf("expected 1 browse result, got %d", len(resp.Results))
	}
	res := resp.Results[0]
	if res.StatusCode != ua.StatusOK {
		return nil, res.StatusCode
	}
	refs := convertReferences(res.References, kind)
	cp := res.ContinuationPoint
	for len(cp) > 0 {
		next, err := c.conn.BrowseNext(ctx, &ua.BrowseNextRequest{ContinuationPoints: [][]byte{cp}})
		if err != nil {
			return nil, err
		}
		if len(next.Results) != 1 {
			return nil, fmt.Errorf("expected 1 browse next result, got %d", len(next.Results))
		}
		if next.Results[0].StatusCode != ua.StatusOK {
			return nil, next.Results[0].StatusCode
		}
		refs = append(refs, convertReferences(next.Results[0].References, kind)...)
		cp = next.Results[0].ContinuationPoint
	}
	return refs, nil
}

func convertReferences(in []*ua.ReferenceDescription, kind ReferenceKind) []Reference {
	out := make([]Reference, 0, len(in))
	for _, r := range in {
		if r == nil || r.NodeID == nil || r.NodeID.NodeID == nil {
			continue
		}
		ref := Reference{
			NodeID:    r.NodeID.NodeID.String(),
			NodeClass: NodeClass(r.NodeClass),
			Kind:      kind,
		}
		if r.BrowseName != nil {
			ref.BrowseName = qualifiedName(r.BrowseName)
		}
		if r.DisplayName != nil {
			ref.DisplayName = r.DisplayName.Text
		}
		if r.TypeDefinition != nil && r.TypeDefinition.NodeID != nil {
			ref.TypeDefinition = r.TypeDefinition.NodeID.String()
		}
		out = append(out, ref)
	}
	return out
}

func (c *opcuaClient) ReadAttributes(ctx context.Context, nodeID string) ([]Attribute, error) {
	nid, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeInvalidNodeID, "parse "+nodeID, err)
	}
	toRead := make([]*ua.ReadValueID, len(AllAttributes))
	for i, a := range AllAttributes {
		toRead[i] = &ua.ReadValueID{NodeID: nid, AttributeID: ua.AttributeID(a)}
	}
	resp, err := c.conn.Read(ctx, &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        toRead,
	})
	if err != nil {
		return nil, appErrors.New(appErrors.CodeReadFailed, "read attributes of "+nodeID, err)
	}
	if len(resp.Results) != len(AllAttributes) {
		return nil, appErrors.New(appErrors.CodeReadFailed,
			fmt.Sprintf("read attributes of %s: expected %d results, got %d", nodeID, len(AllAttributes), len(resp.Results)), nil)
	}
	attrs := make([]Attribute, len(AllAttributes))
	for i, dv := range resp.Results {
		attrs[i] = Attribute{ID: AllAttributes[i], Value: convertDataValue(dv)}
	}
	return attrs, nil
}

func (c *opcuaClient) Monitor(ctx context.Context, nodeID string) error {
	nid, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return appErrors.New(appErrors.CodeInvalidNodeID, "parse "+nodeID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[nodeID]; ok {
		return ErrAlreadyMonitored
	}
	if err := c.ensureSubscription(); err != nil {
		return appErrors.New(appErrors.CodeSubscriptionFailed, "create subscription", err)
	}

	c.nextHandle++
	handle := c.nextHandle
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nid, ua.AttributeIDValue, handle)
	req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval.Milliseconds())
	req.RequestedParameters.QueueSize = c.cfg.QueueSize
	req.RequestedParameters.DiscardOldest = true

	resp, err := c.sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	if err != nil {
		return appErrors.New(appErrors.CodeSubscriptionFailed, "monitor "+nodeID, err)
	}
	if len(resp.Results) != 1 {
		return appErrors.New(appErrors.CodeSubscriptionFailed, fmt.Sprintf("monitor %s: expected 1 result, got %d", nodeID, len(resp.Results)), nil)
	}
	if res := resp.Results[0]; res.StatusCode != ua.StatusOK {
		return appErrors.New(appErrors.CodeSubscriptionFailed, "monitor "+nodeID, res.StatusCode)
	}
	c.items[nodeID] = monitoredItem{handle: handle, itemID: resp.Results[0].MonitoredItemID}
	c.handles[handle] = nodeID
	logger.Logf("monitoring %s (handle %d)", nodeID, handle)
	return nil
}

// ensureSubscription creates the shared subscription on first use. Callers
// hold c.mu.
func (c *opcuaClient) ensureSubscription() error {
	if c.sub != nil {
		return nil
	}
	notify := make(chan *opcua.PublishNotificationData, 64)
	sub, err := c.conn.Subscribe(c.runCtx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishingInterval,
	}, notify)
	if err != nil {
		return err
	}
	c.sub = sub
	c.notify = notify
	go c.pump(notify)
	return nil
}

func (c *opcuaClient) pump(notify <-chan *opcua.PublishNotificationData) {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case res, ok := <-notify:
			if !ok {
				return
			}
			if res.Error != nil {
				c.emit(ValueChange{Err: appErrors.New(appErrors.CodeSubscriptionFailed, "publish", res.Error)})
				continue
			}
			dcn, ok := res.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			for _, item := range dcn.MonitoredItems {
				c.mu.Lock()
				nodeID, known := c.handles[item.ClientHandle]
				c.mu.Unlock()
				if !known {
					continue
				}
				c.emit(ValueChange{NodeID: nodeID, Value: convertDataValue(item.Value)})
			}
		}
	}
}

func (c *opcuaClient) emit(v ValueChange) {
	select {
	case c.changes <- v:
	case <-c.runCtx.Done():
	}
}

func (c *opcuaClient) Unmonitor(ctx context.Context, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[nodeID]
	if !ok {
		return ErrNotMonitored
	}
	if _, err := c.sub.Unmonitor(ctx, item.itemID); err != nil {
		return appErrors.New(appErrors.CodeSubscriptionFailed, "unmonitor "+nodeID, err)
	}
	delete(c.items, nodeID)
	delete(c.handles, item.handle)
	logger.Logf("unmonitored %s", nodeID)
	return nil
}

func (c *opcuaClient) Changes() <-chan ValueChange {
	return c.changes
}

func (c *opcuaClient) Describe() []string {
	return []string{
		"   endpoint url   = " + c.cfg.Endpoint,
		"   securityMode   = " + c.cfg.SecurityMode,
		"   securityPolicy = " + c.cfg.SecurityPolicy,
	}
}

func (c *opcuaClient) Close(ctx context.Context) error {
	c.stop()
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	var errs []error
	if sub != nil {
		if err := sub.Cancel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cancel subscription: %w", err))
		}
	}
	if err := c.conn.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	return errors.Join(errs...)
}

func convertDataValue(dv *ua.DataValue) DataValue {
	if dv == nil {
		return DataValue{}
	}
	out := DataValue{
		Status:          StatusCode(dv.Status),
		SourceTimestamp: dv.SourceTimestamp,
		ServerTimestamp: dv.ServerTimestamp,
	}
	if dv.Value != nil {
		out.Value = normalize(dv.Value.Value())
	}
	return out
}

func qualifiedName(q *ua.QualifiedName) string {
	if q.NamespaceIndex == 0 {
		return q.Name
	}
	return fmt.Sprintf("%d:%s", q.NamespaceIndex, q.Name)
}

// normalize maps gopcua variant values onto the closed set of types
// documented on DataValue.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int64, uint64, float64:
		return x
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x
	case []byte:
		return fmt.Sprintf("0x%X", x)
	case *ua.NodeID:
		return x.String()
	case *ua.ExpandedNodeID:
		if x.NodeID == nil {
			return nil
		}
		return x.NodeID.String()
	case *ua.QualifiedName:
		return qualifiedName(x)
	case *ua.LocalizedText:
		return x.Text
	case ua.StatusCode:
		return StatusCode(x).String()
	case *ua.Variant:
		return normalize(x.Value())
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return fmt.Sprint(v)
}
