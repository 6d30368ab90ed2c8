package wire

// Property identifiers, per MQTT v5 section 2.2.2.2. Each one maps to a
// fixed wire type and a slot in Properties; only UserProperty may repeat
// within one properties block.
const (
	PropPayloadFormatIndicator          uint32 = 0x01
	PropMessageExpiryInterval           uint32 = 0x02
	PropContentType                     uint32 = 0x03
	PropResponseTopic                   uint32 = 0x08
	PropCorrelationData                 uint32 = 0x09
	PropSubscriptionIdentifier          uint32 = 0x0B
	PropSessionExpiryInterval           uint32 = 0x11
	PropAssignedClientIdentifier        uint32 = 0x12
	PropServerKeepAlive                 uint32 = 0x13
	PropAuthenticationMethod            uint32 = 0x15
	PropAuthenticationData              uint32 = 0x16
	PropRequestProblemInformation       uint32 = 0x17
	PropWillDelayInterval                uint32 = 0x18
	PropRequestResponseInformation      uint32 = 0x19
	PropResponseInformation             uint32 = 0x1A
	PropServerReference                 uint32 = 0x1C
	PropReasonString                    uint32 = 0x1F
	PropReceiveMaximum                  uint32 = 0x21
	PropTopicAliasMaximum                uint32 = 0x22
	PropTopicAlias                       uint32 = 0x23
	PropMaximumQoS                       uint32 = 0x24
	PropRetainAvailable                  uint32 = 0x25
	PropUserProperty                     uint32 = 0x26
	PropMaximumPacketSize                uint32 = 0x27
	PropWildcardSubscriptionAvailable    uint32 = 0x28
	PropSubscriptionIdentifierAvailable  uint32 = 0x29
	PropSharedSubscriptionAvailable      uint32 = 0x2A
)

// presence bits, one per optional scalar slot, SubscriptionIdentifier
// included. UserProperty is a slice and has no presence bit: an empty
// slice means none were present.
type presence uint32

const (
	presPayloadFormatIndicator presence = 1 << iota
	presMessageExpiryInterval
	presContentType
	presResponseTopic
	presCorrelationData
	presSubscriptionIdentifier
	presSessionExpiryInterval
	presAssignedClientIdentifier
	presServerKeepAlive
	presAuthenticationMethod
	presAuthenticationData
	presRequestProblemInformation
	presWillDelayInterval
	presRequestResponseInformation
	presResponseInformation
	presServerReference
	presReasonString
	presReceiveMaximum
	presTopicAliasMaximum
	presTopicAlias
	presMaximumQoS
	presRetainAvailable
	presMaximumPacketSize
	presWildcardSubscriptionAvailable
	presSubscriptionIdentifierAvailable
	presSharedSubscriptionAvailable
)

// UserProperty is a free-form key/value pair; the only repeatable property.
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds the decoded contents of one properties block. Only
// fields whose presence bit is set were actually present on the wire;
// reading an absent scalar field returns its Go zero value, which is why
// callers MUST check Has* before trusting a zero as "the server said zero".
type Properties struct {
	presence presence

	PayloadFormatIndicator  uint8
	MessageExpiryInterval   uint32
	ContentType             string
	ResponseTopic           string
	CorrelationData         []byte
	SubscriptionIdentifier  int
	SessionExpiryInterval   uint32
	AssignedClientIdentifier string
	ServerKeepAlive         uint16
	AuthenticationMethod    string
	AuthenticationData      []byte
	RequestProblemInformation uint8
	WillDelayInterval       uint32
	RequestResponseInformation uint8
	ResponseInformation     string
	ServerReference         string
	ReasonString            string
	ReceiveMaximum          uint16
	TopicAliasMaximum       uint16
	TopicAlias              uint16
	MaximumQoS              uint8
	RetainAvailable         bool
	MaximumPacketSize       uint32
	WildcardSubscriptionAvailable   bool
	SubscriptionIdentifierAvailable bool
	SharedSubscriptionAvailable     bool

	UserProperties []UserProperty
}

func (p *Properties) has(bit presence) bool { return p != nil && p.presence&bit != 0 }

func (p *Properties) HasPayloadFormatIndicator() bool  { return p.has(presPayloadFormatIndicator) }
func (p *Properties) HasMessageExpiryInterval() bool   { return p.has(presMessageExpiryInterval) }
func (p *Properties) HasContentType() bool             { return p.has(presContentType) }
func (p *Properties) HasResponseTopic() bool            { return p.has(presResponseTopic) }
func (p *Properties) HasCorrelationData() bool          { return p.has(presCorrelationData) }
func (p *Properties) HasSubscriptionIdentifier() bool   { return p.has(presSubscriptionIdentifier) }
func (p *Properties) HasSessionExpiryInterval() bool    { return p.has(presSessionExpiryInterval) }
func (p *Properties) HasAssignedClientIdentifier() bool { return p.has(presAssignedClientIdentifier) }
func (p *Properties) HasServerKeepAlive() bool          { return p.has(presServerKeepAlive) }
func (p *Properties) HasAuthenticationMethod() bool     { return p.has(presAuthenticationMethod) }
func (p *Properties) HasAuthenticationData() bool       { return p.has(presAuthenticationData) }
func (p *Properties) HasWillDelayInterval() bool        { return p.has(presWillDelayInterval) }
func (p *Properties) HasResponseInformation() bool      { return p.has(presResponseInformation) }
func (p *Properties) HasServerReference() bool          { return p.has(presServerReference) }
func (p *Properties) HasReasonString() bool             { return p.has(presReasonString) }
func (p *Properties) HasReceiveMaximum() bool           { return p.has(presReceiveMaximum) }
func (p *Properties) HasTopicAliasMaximum() bool        { return p.has(presTopicAliasMaximum) }
func (p *Properties) HasTopicAlias() bool               { return p.has(presTopicAlias) }
func (p *Properties) HasMaximumQoS() bool               { return p.has(presMaximumQoS) }
func (p *Properties) HasRetainAvailable() bool          { return p.has(presRetainAvailable) }
func (p *Properties) HasMaximumPacketSize() bool        { return p.has(presMaximumPacketSize) }
func (p *Properties) HasWildcardSubscriptionAvailable() bool {
	return p.has(presWildcardSubscriptionAvailable)
}
func (p *Properties) HasSubscriptionIdentifierAvailable() bool {
	return p.has(presSubscriptionIdentifierAvailable)
}
func (p *Properties) HasSharedSubscriptionAvailable() bool {
	return p.has(presSharedSubscriptionAvailable)
}
func (p *Properties) HasRequestProblemInformation() bool {
	return p.has(presRequestProblemInformation)
}
func (p *Properties) HasRequestResponseInformation() bool {
	return p.has(presRequestResponseInformation)
}

// Set* methods build a Properties block from outside the package (the
// client state machine assembles CONNECT/PUBLISH/SUBSCRIBE/etc. properties
// this way). Each setter sets the value and its presence bit; callers pass
// a non-nil *Properties (construct with &Properties{}). UserProperty is
// the only repeatable one, so it appends instead of overwriting.
func (p *Properties) SetPayloadFormatIndicator(v uint8) {
	p.presence |= presPayloadFormatIndicator
	p.PayloadFormatIndicator = v
}
func (p *Properties) SetMessageExpiryInterval(v uint32) {
	p.presence |= presMessageExpiryInterval
	p.MessageExpiryInterval = v
}
func (p *Properties) SetContentType(v string) {
	p.presence |= presContentType
	p.ContentType = v
}
func (p *Properties) SetResponseTopic(v string) {
	p.presence |= presResponseTopic
	p.ResponseTopic = v
}
func (p *Properties) SetCorrelationData(v []byte) {
	p.presence |= presCorrelationData
	p.CorrelationData = v
}
func (p *Properties) SetSubscriptionIdentifier(v int) {
	p.presence |= presSubscriptionIdentifier
	p.SubscriptionIdentifier = v
}
func (p *Properties) SetSessionExpiryInterval(v uint32) {
	p.presence |= presSessionExpiryInterval
	p.SessionExpiryInterval = v
}
func (p *Properties) SetAssignedClientIdentifier(v string) {
	p.presence |= presAssignedClientIdentifier
	p.AssignedClientIdentifier = v
}
func (p *Properties) SetServerKeepAlive(v uint16) {
	p.presence |= presServerKeepAlive
	p.ServerKeepAlive = v
}
func (p *Properties) SetAuthenticationMethod(v string) {
	p.presence |= presAuthenticationMethod
	p.AuthenticationMethod = v
}
func (p *Properties) SetAuthenticationData(v []byte) {
	p.presence |= presAuthenticationData
	p.AuthenticationData = v
}
func (p *Properties) SetRequestProblemInformation(v uint8) {
	p.presence |= presRequestProblemInformation
	p.RequestProblemInformation = v
}
func (p *Properties) SetWillDelayInterval(v uint32) {
	p.presence |= presWillDelayInterval
	p.WillDelayInterval = v
}
func (p *Properties) SetRequestResponseInformation(v uint8) {
	p.presence |= presRequestResponseInformation
	p.RequestResponseInformation = v
}
func (p *Properties) SetResponseInformation(v string) {
	p.presence |= presResponseInformation
	p.ResponseInformation = v
}
func (p *Properties) SetServerReference(v string) {
	p.presence |= presServerReference
	p.ServerReference = v
}
func (p *Properties) SetReasonString(v string) {
	p.presence |= presReasonString
	p.ReasonString = v
}
func (p *Properties) SetReceiveMaximum(v uint16) {
	p.presence |= presReceiveMaximum
	p.ReceiveMaximum = v
}
func (p *Properties) SetTopicAliasMaximum(v uint16) {
	p.presence |= presTopicAliasMaximum
	p.TopicAliasMaximum = v
}
func (p *Properties) SetTopicAlias(v uint16) {
	p.presence |= presTopicAlias
	p.TopicAlias = v
}
func (p *Properties) SetMaximumQoS(v uint8) {
	p.presence |= presMaximumQoS
	p.MaximumQoS = v
}
func (p *Properties) SetRetainAvailable(v bool) {
	p.presence |= presRetainAvailable
	p.RetainAvailable = v
}
func (p *Properties) SetMaximumPacketSize(v uint32) {
	p.presence |= presMaximumPacketSize
	p.MaximumPacketSize = v
}
func (p *Properties) SetWildcardSubscriptionAvailable(v bool) {
	p.presence |= presWildcardSubscriptionAvailable
	p.WildcardSubscriptionAvailable = v
}
func (p *Properties) SetSubscriptionIdentifierAvailable(v bool) {
	p.presence |= presSubscriptionIdentifierAvailable
	p.SubscriptionIdentifierAvailable = v
}
func (p *Properties) SetSharedSubscriptionAvailable(v bool) {
	p.presence |= presSharedSubscriptionAvailable
	p.SharedSubscriptionAvailable = v
}
func (p *Properties) AddUserProperty(key, value string) {
	p.UserProperties = append(p.UserProperties, UserProperty{Key: key, Value: value})
}

// admittedSet names the packet context a properties block is being parsed
// or written for, so the parser can reject properties that are valid MQTT
// v5 identifiers but simply not in that packet type's admitted subset.
type admittedSet uint8

const (
	AdmitConnect admittedSet = iota
	AdmitWill
	AdmitConnack
	AdmitPublish
	AdmitPubAckRecRelComp
	AdmitSubscribe
	AdmitSuback
	AdmitUnsubscribe
	AdmitUnsuback
	AdmitDisconnect
	AdmitAuth
)

// admittedIDs is the per-packet-type allow-list. A recognized identifier
// not in this set for the current context is rejected exactly like an
// unknown identifier: a property valid in general but misplaced for this
// packet type is caught at identifier-lookup time.
var admittedIDs = map[admittedSet]map[uint32]bool{
	AdmitConnect: ids(PropSessionExpiryInterval, PropAuthenticationMethod, PropAuthenticationData,
		PropRequestProblemInformation, PropRequestResponseInformation, PropReceiveMaximum,
		PropTopicAliasMaximum, PropUserProperty, PropMaximumPacketSize),
	AdmitWill: ids(PropPayloadFormatIndicator, PropMessageExpiryInterval, PropContentType,
		PropResponseTopic, PropCorrelationData, PropWillDelayInterval, PropUserProperty),
	AdmitConnack: ids(PropSessionExpiryInterval, PropAssignedClientIdentifier, PropServerKeepAlive,
		PropAuthenticationMethod, PropAuthenticationData, PropResponseInformation, PropServerReference,
		PropReasonString, PropReceiveMaximum, PropTopicAliasMaximum, PropMaximumQoS, PropRetainAvailable,
		PropUserProperty, PropMaximumPacketSize, PropWildcardSubscriptionAvailable,
		PropSubscriptionIdentifierAvailable, PropSharedSubscriptionAvailable),
	AdmitPublish: ids(PropPayloadFormatIndicator, PropMessageExpiryInterval, PropContentType,
		PropResponseTopic, PropCorrelationData, PropSubscriptionIdentifier, PropTopicAlias, PropUserProperty),
	AdmitPubAckRecRelComp: ids(PropReasonString, PropUserProperty),
	AdmitSubscribe:        ids(PropSubscriptionIdentifier, PropUserProperty),
	AdmitSuback:           ids(PropReasonString, PropUserProperty),
	AdmitUnsubscribe:      ids(PropUserProperty),
	AdmitUnsuback:         ids(PropReasonString, PropUserProperty),
	AdmitDisconnect: ids(PropSessionExpiryInterval, PropServerReference, PropReasonString,
		PropUserProperty),
	AdmitAuth: ids(PropAuthenticationMethod, PropAuthenticationData, PropReasonString, PropUserProperty),
}

func ids(list ...uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(list))
	for _, id := range list {
		m[id] = true
	}
	return m
}

// ParseProperties parses a properties block: variable_u32(total_len)
// followed by exactly total_len bytes of (id, value) pairs. It enforces:
// unused trailing bytes within the declared length are a MalformedPacket,
// an id outside ctx's admitted set is a MalformedPacket, and a repeated
// non-repeatable id is a MalformedPacket.
func ParseProperties(buf []byte, ctx admittedSet) (*Properties, int, error) {
	totalLen, n, err := ParseVarInt(buf)
	if err != nil {
		return nil, 0, err
	}
	consumed := n
	if len(buf) < consumed+totalLen {
		return nil, 0, incomplete(consumed + totalLen - len(buf))
	}
	block := buf[consumed : consumed+totalLen]
	consumed += totalLen

	allowed := admittedIDs[ctx]
	props := &Properties{}

	off := 0
	for off < len(block) {
		rawID, idN, err := ParseVarInt(block[off:])
		if err != nil {
			if _, ok := err.(*IncompleteError); ok {
				return nil, 0, malformed("trailing bytes in properties block")
			}
			return nil, 0, err
		}
		off += idN
		id := uint32(rawID)

		if !allowed[id] {
			return nil, 0, malformed("property id 0x%x not admitted here", id)
		}

		switch id {
		case PropPayloadFormatIndicator:
			if props.has(presPayloadFormatIndicator) {
				return nil, 0, malformed("duplicate PayloadFormatIndicator")
			}
			v, m, err := parseU8(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.PayloadFormatIndicator = v
			props.presence |= presPayloadFormatIndicator
			off += m
		case PropMessageExpiryInterval:
			if props.has(presMessageExpiryInterval) {
				return nil, 0, malformed("duplicate MessageExpiryInterval")
			}
			v, m, err := ParseU32(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.MessageExpiryInterval = v
			props.presence |= presMessageExpiryInterval
			off += m
		case PropContentType:
			if props.has(presContentType) {
				return nil, 0, malformed("duplicate ContentType")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ContentType = v
			props.presence |= presContentType
			off += m
		case PropResponseTopic:
			if props.has(presResponseTopic) {
				return nil, 0, malformed("duplicate ResponseTopic")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ResponseTopic = v
			props.presence |= presResponseTopic
			off += m
		case PropCorrelationData:
			if props.has(presCorrelationData) {
				return nil, 0, malformed("duplicate CorrelationData")
			}
			v, m, err := ParseBinary(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.CorrelationData = append([]byte(nil), v...)
			props.presence |= presCorrelationData
			off += m
		case PropSubscriptionIdentifier:
			if props.has(presSubscriptionIdentifier) {
				return nil, 0, malformed("duplicate SubscriptionIdentifier")
			}
			v, m, err := ParseVarInt(block[off:])
			if err != nil {
				return nil, 0, err
			}
			if v == 0 {
				return nil, 0, malformed("SubscriptionIdentifier must not be 0")
			}
			props.SubscriptionIdentifier = v
			props.presence |= presSubscriptionIdentifier
			off += m
		case PropSessionExpiryInterval:
			if props.has(presSessionExpiryInterval) {
				return nil, 0, malformed("duplicate SessionExpiryInterval")
			}
			v, m, err := ParseU32(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.SessionExpiryInterval = v
			props.presence |= presSessionExpiryInterval
			off += m
		case PropAssignedClientIdentifier:
			if props.has(presAssignedClientIdentifier) {
				return nil, 0, malformed("duplicate AssignedClientIdentifier")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.AssignedClientIdentifier = v
			props.presence |= presAssignedClientIdentifier
			off += m
		case PropServerKeepAlive:
			if props.has(presServerKeepAlive) {
				return nil, 0, malformed("duplicate ServerKeepAlive")
			}
			v, m, err := ParseU16(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ServerKeepAlive = v
			props.presence |= presServerKeepAlive
			off += m
		case PropAuthenticationMethod:
			if props.has(presAuthenticationMethod) {
				return nil, 0, malformed("duplicate AuthenticationMethod")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.AuthenticationMethod = v
			props.presence |= presAuthenticationMethod
			off += m
		case PropAuthenticationData:
			if props.has(presAuthenticationData) {
				return nil, 0, malformed("duplicate AuthenticationData")
			}
			v, m, err := ParseBinary(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.AuthenticationData = append([]byte(nil), v...)
			props.presence |= presAuthenticationData
			off += m
		case PropRequestProblemInformation:
			if props.has(presRequestProblemInformation) {
				return nil, 0, malformed("duplicate RequestProblemInformation")
			}
			v, m, err := parseU8(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.RequestProblemInformation = v
			props.presence |= presRequestProblemInformation
			off += m
		case PropWillDelayInterval:
			if props.has(presWillDelayInterval) {
				return nil, 0, malformed("duplicate WillDelayInterval")
			}
			v, m, err := ParseU32(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.WillDelayInterval = v
			props.presence |= presWillDelayInterval
			off += m
		case PropRequestResponseInformation:
			if props.has(presRequestResponseInformation) {
				return nil, 0, malformed("duplicate RequestResponseInformation")
			}
			v, m, err := parseU8(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.RequestResponseInformation = v
			props.presence |= presRequestResponseInformation
			off += m
		case PropResponseInformation:
			if props.has(presResponseInformation) {
				return nil, 0, malformed("duplicate ResponseInformation")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ResponseInformation = v
			props.presence |= presResponseInformation
			off += m
		case PropServerReference:
			if props.has(presServerReference) {
				return nil, 0, malformed("duplicate ServerReference")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ServerReference = v
			props.presence |= presServerReference
			off += m
		case PropReasonString:
			if props.has(presReasonString) {
				return nil, 0, malformed("duplicate ReasonString")
			}
			v, m, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.ReasonString = v
			props.presence |= presReasonString
			off += m
		case PropReceiveMaximum:
			if props.has(presReceiveMaximum) {
				return nil, 0, malformed("duplicate ReceiveMaximum")
			}
			v, m, err := ParseU16(block[off:])
			if err != nil {
				return nil, 0, err
			}
			if v == 0 {
				return nil, 0, malformed("ReceiveMaximum must not be 0")
			}
			props.ReceiveMaximum = v
			props.presence |= presReceiveMaximum
			off += m
		case PropTopicAliasMaximum:
			if props.has(presTopicAliasMaximum) {
				return nil, 0, malformed("duplicate TopicAliasMaximum")
			}
			v, m, err := ParseU16(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.TopicAliasMaximum = v
			props.presence |= presTopicAliasMaximum
			off += m
		case PropTopicAlias:
			if props.has(presTopicAlias) {
				return nil, 0, malformed("duplicate TopicAlias")
			}
			v, m, err := ParseU16(block[off:])
			if err != nil {
				return nil, 0, err
			}
			if v == 0 {
				return nil, 0, malformed("TopicAlias must not be 0")
			}
			props.TopicAlias = v
			props.presence |= presTopicAlias
			off += m
		case PropMaximumQoS:
			if props.has(presMaximumQoS) {
				return nil, 0, malformed("duplicate MaximumQoS")
			}
			v, m, err := parseU8(block[off:])
			if err != nil {
				return nil, 0, err
			}
			if v > 1 {
				return nil, 0, malformed("MaximumQoS must be 0 or 1")
			}
			props.MaximumQoS = v
			props.presence |= presMaximumQoS
			off += m
		case PropRetainAvailable:
			if props.has(presRetainAvailable) {
				return nil, 0, malformed("duplicate RetainAvailable")
			}
			v, m, err := ParseBool(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.RetainAvailable = v
			props.presence |= presRetainAvailable
			off += m
		case PropUserProperty:
			k, m1, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			off += m1
			v, m2, err := ParseString(block[off:])
			if err != nil {
				return nil, 0, err
			}
			off += m2
			props.UserProperties = append(props.UserProperties, UserProperty{Key: k, Value: v})
		case PropMaximumPacketSize:
			if props.has(presMaximumPacketSize) {
				return nil, 0, malformed("duplicate MaximumPacketSize")
			}
			v, m, err := ParseU32(block[off:])
			if err != nil {
				return nil, 0, err
			}
			if v == 0 {
				return nil, 0, malformed("MaximumPacketSize must not be 0")
			}
			props.MaximumPacketSize = v
			props.presence |= presMaximumPacketSize
			off += m
		case PropWildcardSubscriptionAvailable:
			if props.has(presWildcardSubscriptionAvailable) {
				return nil, 0, malformed("duplicate WildcardSubscriptionAvailable")
			}
			v, m, err := ParseBool(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.WildcardSubscriptionAvailable = v
			props.presence |= presWildcardSubscriptionAvailable
			off += m
		case PropSubscriptionIdentifierAvailable:
			if props.has(presSubscriptionIdentifierAvailable) {
				return nil, 0, malformed("duplicate SubscriptionIdentifierAvailable")
			}
			v, m, err := ParseBool(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.SubscriptionIdentifierAvailable = v
			props.presence |= presSubscriptionIdentifierAvailable
			off += m
		case PropSharedSubscriptionAvailable:
			if props.has(presSharedSubscriptionAvailable) {
				return nil, 0, malformed("duplicate SharedSubscriptionAvailable")
			}
			v, m, err := ParseBool(block[off:])
			if err != nil {
				return nil, 0, err
			}
			props.SharedSubscriptionAvailable = v
			props.presence |= presSharedSubscriptionAvailable
			off += m
		default:
			return nil, 0, malformed("unknown property id 0x%x", id)
		}
	}
	if off != len(block) {
		return nil, 0, malformed("trailing bytes in properties block")
	}

	return props, consumed, nil
}

func parseU8(buf []byte) (uint8, int, error) {
	if len(buf) < 1 {
		return 0, 0, incomplete(1)
	}
	return buf[0], 1, nil
}

// PropertiesSize returns the on-wire size of the properties block
// INCLUDING its own length prefix.
func PropertiesSize(p *Properties) int {
	body := propertiesBodySize(p)
	return VarIntSize(body) + body
}

func propertiesBodySize(p *Properties) int {
	if p == nil {
		return 0
	}
	n := 0
	if p.has(presPayloadFormatIndicator) {
		n += VarIntSize(int(PropPayloadFormatIndicator)) + 1
	}
	if p.has(presMessageExpiryInterval) {
		n += VarIntSize(int(PropMessageExpiryInterval)) + 4
	}
	if p.has(presContentType) {
		n += VarIntSize(int(PropContentType)) + StringSize(p.ContentType)
	}
	if p.has(presResponseTopic) {
		n += VarIntSize(int(PropResponseTopic)) + StringSize(p.ResponseTopic)
	}
	if p.has(presCorrelationData) {
		n += VarIntSize(int(PropCorrelationData)) + BinarySize(p.CorrelationData)
	}
	if p.has(presSubscriptionIdentifier) {
		n += VarIntSize(int(PropSubscriptionIdentifier)) + VarIntSize(p.SubscriptionIdentifier)
	}
	if p.has(presSessionExpiryInterval) {
		n += VarIntSize(int(PropSessionExpiryInterval)) + 4
	}
	if p.has(presAssignedClientIdentifier) {
		n += VarIntSize(int(PropAssignedClientIdentifier)) + StringSize(p.AssignedClientIdentifier)
	}
	if p.has(presServerKeepAlive) {
		n += VarIntSize(int(PropServerKeepAlive)) + 2
	}
	if p.has(presAuthenticationMethod) {
		n += VarIntSize(int(PropAuthenticationMethod)) + StringSize(p.AuthenticationMethod)
	}
	if p.has(presAuthenticationData) {
		n += VarIntSize(int(PropAuthenticationData)) + BinarySize(p.AuthenticationData)
	}
	if p.has(presRequestProblemInformation) {
		n += VarIntSize(int(PropRequestProblemInformation)) + 1
	}
	if p.has(presWillDelayInterval) {
		n += VarIntSize(int(PropWillDelayInterval)) + 4
	}
	if p.has(presRequestResponseInformation) {
		n += VarIntSize(int(PropRequestResponseInformation)) + 1
	}
	if p.has(presResponseInformation) {
		n += VarIntSize(int(PropResponseInformation)) + StringSize(p.ResponseInformation)
	}
	if p.has(presServerReference) {
		n += VarIntSize(int(PropServerReference)) + StringSize(p.ServerReference)
	}
	if p.has(presReasonString) {
		n += VarIntSize(int(PropReasonString)) + StringSize(p.ReasonString)
	}
	if p.has(presReceiveMaximum) {
		n += VarIntSize(int(PropReceiveMaximum)) + 2
	}
	if p.has(presTopicAliasMaximum) {
		n += VarIntSize(int(PropTopicAliasMaximum)) + 2
	}
	if p.has(presTopicAlias) {
		n += VarIntSize(int(PropTopicAlias)) + 2
	}
	if p.has(presMaximumQoS) {
		n += VarIntSize(int(PropMaximumQoS)) + 1
	}
	if p.has(presRetainAvailable) {
		n += VarIntSize(int(PropRetainAvailable)) + 1
	}
	if p.has(presMaximumPacketSize) {
		n += VarIntSize(int(PropMaximumPacketSize)) + 4
	}
	if p.has(presWildcardSubscriptionAvailable) {
		n += VarIntSize(int(PropWildcardSubscriptionAvailable)) + 1
	}
	if p.has(presSubscriptionIdentifierAvailable) {
		n += VarIntSize(int(PropSubscriptionIdentifierAvailable)) + 1
	}
	if p.has(presSharedSubscriptionAvailable) {
		n += VarIntSize(int(PropSharedSubscriptionAvailable)) + 1
	}
	for _, up := range p.UserProperties {
		n += VarIntSize(int(PropUserProperty)) + StringSize(up.Key) + StringSize(up.Value)
	}
	return n
}

// AppendProperties appends the full properties block (length prefix + body).
func AppendProperties(dst []byte, p *Properties) []byte {
	body := propertiesBodySize(p)
	dst = AppendVarInt(dst, body)
	if p == nil {
		return dst
	}
	if p.has(presPayloadFormatIndicator) {
		dst = AppendVarInt(dst, int(PropPayloadFormatIndicator))
		dst = append(dst, p.PayloadFormatIndicator)
	}
	if p.has(presMessageExpiryInterval) {
		dst = AppendVarInt(dst, int(PropMessageExpiryInterval))
		dst = AppendU32(dst, p.MessageExpiryInterval)
	}
	if p.has(presContentType) {
		dst = AppendVarInt(dst, int(PropContentType))
		dst = AppendString(dst, p.ContentType)
	}
	if p.has(presResponseTopic) {
		dst = AppendVarInt(dst, int(PropResponseTopic))
		dst = AppendString(dst, p.ResponseTopic)
	}
	if p.has(presCorrelationData) {
		dst = AppendVarInt(dst, int(PropCorrelationData))
		dst = AppendBinary(dst, p.CorrelationData)
	}
	if p.has(presSubscriptionIdentifier) {
		dst = AppendVarInt(dst, int(PropSubscriptionIdentifier))
		dst = AppendVarInt(dst, p.SubscriptionIdentifier)
	}
	if p.has(presSessionExpiryInterval) {
		dst = AppendVarInt(dst, int(PropSessionExpiryInterval))
		dst = AppendU32(dst, p.SessionExpiryInterval)
	}
	if p.has(presAssignedClientIdentifier) {
		dst = AppendVarInt(dst, int(PropAssignedClientIdentifier))
		dst = AppendString(dst, p.AssignedClientIdentifier)
	}
	if p.has(presServerKeepAlive) {
		dst = AppendVarInt(dst, int(PropServerKeepAlive))
		dst = AppendU16(dst, p.ServerKeepAlive)
	}
	if p.has(presAuthenticationMethod) {
		dst = AppendVarInt(dst, int(PropAuthenticationMethod))
		dst = AppendString(dst, p.AuthenticationMethod)
	}
	if p.has(presAuthenticationData) {
		dst = AppendVarInt(dst, int(PropAuthenticationData))
		dst = AppendBinary(dst, p.AuthenticationData)
	}
	if p.has(presRequestProblemInformation) {
		dst = AppendVarInt(dst, int(PropRequestProblemInformation))
		dst = append(dst, p.RequestProblemInformation)
	}
	if p.has(presWillDelayInterval) {
		dst = AppendVarInt(dst, int(PropWillDelayInterval))
		dst = AppendU32(dst, p.WillDelayInterval)
	}
	if p.has(presRequestResponseInformation) {
		dst = AppendVarInt(dst, int(PropRequestResponseInformation))
		dst = append(dst, p.RequestResponseInformation)
	}
	if p.has(presResponseInformation) {
		dst = AppendVarInt(dst, int(PropResponseInformation))
		dst = AppendString(dst, p.ResponseInformation)
	}
	if p.has(presServerReference) {
		dst = AppendVarInt(dst, int(PropServerReference))
		dst = AppendString(dst, p.ServerReference)
	}
	if p.has(presReasonString) {
		dst = AppendVarInt(dst, int(PropReasonString))
		dst = AppendString(dst, p.ReasonString)
	}
	if p.has(presReceiveMaximum) {
		dst = AppendVarInt(dst, int(PropReceiveMaximum))
		dst = AppendU16(dst, p.ReceiveMaximum)
	}
	if p.has(presTopicAliasMaximum) {
		dst = AppendVarInt(dst, int(PropTopicAliasMaximum))
		dst = AppendU16(dst, p.TopicAliasMaximum)
	}
	if p.has(presTopicAlias) {
		dst = AppendVarInt(dst, int(PropTopicAlias))
		dst = AppendU16(dst, p.TopicAlias)
	}
	if p.has(presMaximumQoS) {
		dst = AppendVarInt(dst, int(PropMaximumQoS))
		dst = append(dst, p.MaximumQoS)
	}
	if p.has(presRetainAvailable) {
		dst = AppendVarInt(dst, int(PropRetainAvailable))
		dst = AppendBool(dst, p.RetainAvailable)
	}
	if p.has(presMaximumPacketSize) {
		dst = AppendVarInt(dst, int(PropMaximumPacketSize))
		dst = AppendU32(dst, p.MaximumPacketSize)
	}
	if p.has(presWildcardSubscriptionAvailable) {
		dst = AppendVarInt(dst, int(PropWildcardSubscriptionAvailable))
		dst = AppendBool(dst, p.WildcardSubscriptionAvailable)
	}
	if p.has(presSubscriptionIdentifierAvailable) {
		dst = AppendVarInt(dst, int(PropSubscriptionIdentifierAvailable))
		dst = AppendBool(dst, p.SubscriptionIdentifierAvailable)
	}
	if p.has(presSharedSubscriptionAvailable) {
		dst = AppendVarInt(dst, int(PropSharedSubscriptionAvailable))
		dst = AppendBool(dst, p.SharedSubscriptionAvailable)
	}
	for _, up := range p.UserProperties {
		dst = AppendVarInt(dst, int(PropUserProperty))
		dst = AppendString(dst, up.Key)
		dst = AppendString(dst, up.Value)
	}
	return dst
}
