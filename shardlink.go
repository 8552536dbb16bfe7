package shardlink

import (
	rpcpkg "github.com/glyphbot/shardlink/internal/rpc"
	brokerpkg "github.com/glyphbot/shardlink/internal/rpc/broker"
	configpkg "github.com/glyphbot/shardlink/internal/rpc/config"
	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	gatewaypkg "github.com/glyphbot/shardlink/internal/rpc/gateway"
	idspkg "github.com/glyphbot/shardlink/internal/rpc/ids"
	interactionspkg "github.com/glyphbot/shardlink/internal/rpc/interactions"
	jsoncodec "github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	loggingpkg "github.com/glyphbot/shardlink/internal/rpc/logging"
	storepkg "github.com/glyphbot/shardlink/internal/rpc/store"
)

type (
	Config       = configpkg.Config
	Service      = rpcpkg.Service
	Dependencies = rpcpkg.Dependencies

	Processor             = rpcpkg.Processor
	NamespaceRegistration = rpcpkg.NamespaceRegistration
	Request               = rpcpkg.Request
	Result                = rpcpkg.Result
	Response              = rpcpkg.Response
	ResponseError         = rpcpkg.ResponseError
	ErrorCode             = rpcpkg.ErrorCode
	ErrorCategory         = rpcpkg.ErrorCategory
	Delivery              = rpcpkg.Delivery
	Acknowledger          = rpcpkg.Acknowledger

	// Broker plumbing, exposed so embedders can substitute the dialer.
	BrokerChannel    = brokerpkg.Channel
	BrokerConnection = brokerpkg.Connection
	BrokerDialer     = brokerpkg.Dialer
	ConnManager      = brokerpkg.ConnManager
	Topology         = brokerpkg.Topology

	// Gateway collaborator contract.
	GatewayClient   = gatewaypkg.Client
	Guild           = gatewaypkg.Guild
	Member          = gatewaypkg.Member
	Role            = gatewaypkg.Role
	RoleTags        = gatewaypkg.RoleTags
	Channel         = gatewaypkg.Channel
	ChannelType     = gatewaypkg.ChannelType
	Capability      = gatewaypkg.Capability
	CapabilitySet   = gatewaypkg.CapabilitySet
	CapabilityError = gatewaypkg.CapabilityError
	PermissionError = gatewaypkg.PermissionError
	HierarchyError  = gatewaypkg.HierarchyError
	Permission      = gatewaypkg.Permission
	Override        = gatewaypkg.Override
	OverrideTarget  = gatewaypkg.OverrideTarget
	Message         = gatewaypkg.Message
	Outgoing        = gatewaypkg.Outgoing
	Embed           = gatewaypkg.Embed
	EmbedField      = gatewaypkg.EmbedField
	CompletionFunc  = gatewaypkg.CompletionFunc
	MessageFunc     = gatewaypkg.MessageFunc
	MessagesFunc    = gatewaypkg.MessagesFunc

	// Entity-store collaborator contract.
	Store         = storepkg.Store
	Slot          = storepkg.Slot
	SlotKind      = storepkg.SlotKind
	CustomCommand = storepkg.CustomCommand
	AutoResponder = storepkg.AutoResponder

	InteractionRegistry = interactionspkg.Registry
	InteractionHandle   = interactionspkg.Handle

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
)

const (
	StatusOK           = rpcpkg.StatusOK
	StatusNotFound     = rpcpkg.StatusNotFound
	StatusBadRequest   = rpcpkg.StatusBadRequest
	StatusServerError  = rpcpkg.StatusServerError
	StatusGatewayError = rpcpkg.StatusGatewayError

	AnyShard = rpcpkg.AnyShard

	CapMovable  = gatewaypkg.CapMovable
	CapThreaded = gatewaypkg.CapThreaded
	CapText     = gatewaypkg.CapText
	CapVoice    = gatewaypkg.CapVoice

	ChannelText     = gatewaypkg.ChannelText
	ChannelVoice    = gatewaypkg.ChannelVoice
	ChannelCategory = gatewaypkg.ChannelCategory
	ChannelThread   = gatewaypkg.ChannelThread
	ChannelNews     = gatewaypkg.ChannelNews
	ChannelStage    = gatewaypkg.ChannelStage

	KindCommand   = storepkg.KindCommand
	KindResponder = storepkg.KindResponder
)

var (
	NewService        = rpcpkg.NewService
	DefaultNamespaces = rpcpkg.DefaultNamespaces
	ShardOf           = rpcpkg.ShardOf
	NewDelivery       = rpcpkg.NewDelivery
	Success           = rpcpkg.Success
	Failure           = rpcpkg.Failure
	Pending           = rpcpkg.Pending
	Replied           = rpcpkg.Replied
	MapError          = rpcpkg.MapError
	Categorize        = rpcpkg.Categorize

	ValidateConfig = configpkg.ValidateConfig

	ParsePermission  = gatewaypkg.ParsePermission
	ParseChannelType = gatewaypkg.ParseChannelType
	ParseSlotKind    = storepkg.ParseSlotKind

	NewConnManager = brokerpkg.NewConnManager
	AMQPDialer     = brokerpkg.AMQPDialer

	NewInteractionRegistry = interactionspkg.NewRegistry

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	CreateULID = idspkg.CreateULID

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrClientRequired     = errspkg.ErrClientRequired
	ErrStoreRequired      = errspkg.ErrStoreRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrProcessorRequired  = errspkg.ErrProcessorRequired
	ErrPrefixRequired     = errspkg.ErrPrefixRequired
	ErrReplyToRequired    = errspkg.ErrReplyToRequired
	ErrAlreadyAcked       = errspkg.ErrAlreadyAcked
	ErrConnectionRequired = errspkg.ErrConnectionRequired
	ErrStoreNotFound      = storepkg.ErrNotFound
)
