package addrspace

import (
	"fmt"
	"strings"
	"time"
)

// RootNodeID is the NodeId of the address space's RootFolder.
const RootNodeID = "i=84"

// RootBrowseName is the browse name shown for the root node.
const RootBrowseName = "RootFolder"

// NodeClass mirrors the OPC UA NodeClass enumeration.
type NodeClass uint32

const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

var nodeClassNames = map[NodeClass]string{
	NodeClassUnspecified:   "Unspecified",
	NodeClassObject:        "Object",
	NodeClassVariable:      "Variable",
	NodeClassMethod:        "Method",
	NodeClassObjectType:    "ObjectType",
	NodeClassVariableType:  "VariableType",
	NodeClassReferenceType: "ReferenceType",
	NodeClassDataType:      "DataType",
	NodeClassView:          "View",
}

func (c NodeClass) String() string {
	if name, ok := nodeClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("NodeClass(%d)", uint32(c))
}

// ReferenceKind is the hierarchical reference type a child was found through.
type ReferenceKind int

const (
	KindNone ReferenceKind = iota
	KindOrganizes
	KindAggregates
)

// Arrow returns the glyph prefixed to tree labels.
func (k ReferenceKind) Arrow() string {
	switch k {
	case KindOrganizes:
		return "o-> "
	case KindAggregates:
		return "+-> "
	default:
		return ""
	}
}

func (k ReferenceKind) String() string {
	switch k {
	case KindOrganizes:
		return "Organizes"
	case KindAggregates:
		return "Aggregates"
	default:
		return "None"
	}
}

// BrowseKinds lists the reference kinds queried for every node, in order.
var BrowseKinds = []ReferenceKind{KindOrganizes, KindAggregates}

// Reference is a forward hierarchical reference returned by Browse.
type Reference struct {
	NodeID         string
	BrowseName     string
	DisplayName    string
	NodeClass      NodeClass
	Kind           ReferenceKind
	TypeDefinition string
}

// StatusCode is an OPC UA status code.
type StatusCode uint32

// StatusGood is the Good status.
const StatusGood StatusCode = 0

// IsGood reports whether the severity bits are Good.
func (s StatusCode) IsGood() bool {
	return s&0xC0000000 == 0
}

func (s StatusCode) String() string {
	if s == StatusGood {
		return "Good"
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// DataValue is a value with its status and timestamps. Value holds one of
// nil, bool, int64, uint64, float64, string, time.Time or []any of those.
type DataValue struct {
	Value           any
	Status          StatusCode
	SourceTimestamp time.Time
	ServerTimestamp time.Time
}

// Attribute is one attribute read from a node.
type Attribute struct {
	ID    AttributeID
	Value DataValue
}

// ValueChange is a notification for a monitored node. Err is set when the
// subscription itself reported a failure.
type ValueChange struct {
	NodeID string
	Value  DataValue
	Err    error
}

// AttributeID identifies an OPC UA node attribute.
type AttributeID uint32

const (
	AttrNodeID                  AttributeID = 1
	AttrNodeClass               AttributeID = 2
	AttrBrowseName              AttributeID = 3
	AttrDisplayName             AttributeID = 4
	AttrDescription             AttributeID = 5
	AttrWriteMask               AttributeID = 6
	AttrUserWriteMask           AttributeID = 7
	AttrIsAbstract              AttributeID = 8
	AttrSymmetric               AttributeID = 9
	AttrInverseName             AttributeID = 10
	AttrContainsNoLoops         AttributeID = 11
	AttrEventNotifier           AttributeID = 12
	AttrValue                   AttributeID = 13
	AttrDataType                AttributeID = 14
	AttrValueRank               AttributeID = 15
	AttrArrayDimensions         AttributeID = 16
	AttrAccessLevel             AttributeID = 17
	AttrUserAccessLevel         AttributeID = 18
	AttrMinimumSamplingInterval AttributeID = 19
	AttrHistorizing             AttributeID = 20
	AttrExecutable              AttributeID = 21
	AttrUserExecutable          AttributeID = 22
)

var attributeNames = map[AttributeID]string{
	AttrNodeID:                  "NodeId",
	AttrNodeClass:               "NodeClass",
	AttrBrowseName:              "BrowseName",
	AttrDisplayName:             "DisplayName",
	AttrDescription:             "Description",
	AttrWriteMask:               "WriteMask",
	AttrUserWriteMask:           "UserWriteMask",
	AttrIsAbstract:              "IsAbstract",
	AttrSymmetric:               "Symmetric",
	AttrInverseName:             "InverseName",
	AttrContainsNoLoops:         "ContainsNoLoops",
	AttrEventNotifier:           "EventNotifier",
	AttrValue:                   "Value",
	AttrDataType:                "DataType",
	AttrValueRank:               "ValueRank",
	AttrArrayDimensions:         "ArrayDimensions",
	AttrAccessLevel:             "AccessLevel",
	AttrUserAccessLevel:         "UserAccessLevel",
	AttrMinimumSamplingInterval: "MinimumSamplingInterval",
	AttrHistorizing:             "Historizing",
	AttrExecutable:              "Executable",
	AttrUserExecutable:          "UserExecutable",
}

// AllAttributes is the attribute set read for the attribute panel.
var AllAttributes = []AttributeID{
	AttrNodeID, AttrNodeClass, AttrBrowseName, AttrDisplayName, AttrDescription,
	AttrWriteMask, AttrUserWriteMask, AttrIsAbstract, AttrSymmetric, AttrInverseName,
	AttrContainsNoLoops, AttrEventNotifier, AttrValue, AttrDataType, AttrValueRank,
	AttrArrayDimensions, AttrAccessLevel, AttrUserAccessLevel, AttrMinimumSamplingInterval,
	AttrHistorizing, AttrExecutable, AttrUserExecutable,
}

func (a AttributeID) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(%d)", uint32(a))
}

// accessLevelFlags in bit order.
var accessLevelFlags = []struct {
	bit  uint64
	name string
}{
	{0x01, "CurrentRead"},
	{0x02, "CurrentWrite"},
	{0x04, "HistoryRead"},
	{0x08, "HistoryWrite"},
	{0x10, "SemanticChange"},
	{0x20, "StatusWrite"},
	{0x40, "TimestampWrite"},
}

// AccessLevelString renders an access level bit set as flag names.
func AccessLevelString(level uint64) string {
	var names []string
	for _, f := range accessLevelFlags {
		if level&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, " | ")
}

// dataTypeNames maps namespace 0 data type ids to their names.
var dataTypeNames = map[uint32]string{
	1: "Boolean", 2: "SByte", 3: "Byte", 4: "Int16", 5: "UInt16", 6: "Int32",
	7: "UInt32", 8: "Int64", 9: "UInt64", 10: "Float", 11: "Double", 12: "String",
	13: "DateTime", 14: "Guid", 15: "ByteString", 16: "XmlElement", 17: "NodeId",
	18: "ExpandedNodeId", 19: "StatusCode", 20: "QualifiedName", 21: "LocalizedText",
	22: "Structure", 23: "DataValue", 24: "BaseDataType", 25: "DiagnosticInfo",
	26: "Number", 27: "Integer", 28: "UInteger", 29: "Enumeration", 290: "Duration",
	294: "UtcTime", 295: "LocaleId", 884: "Range", 887: "EUInformation",
}

// DataTypeName resolves a DataType NodeId string such as "i=11".
func DataTypeName(nodeID string) string {
	var id uint32
	if _, err := fmt.Sscanf(nodeID, "i=%d", &id); err == nil {
		if name, ok := dataTypeNames[id]; ok {
			return name
		}
	}
	return "Unknown"
}
