package notification

// Type identifies the kind of domain event a notification describes.
type Type string

const (
	// Pool lifecycle
	TypePoolCreated   Type = "POOL_CREATED"
	TypePoolStarted   Type = "POOL_STARTED"
	TypePoolCompleted Type = "POOL_COMPLETED"
	TypePoolCancelled Type = "POOL_CANCELLED"

	// Membership
	TypeMemberJoined   Type = "MEMBER_JOINED"
	TypeMemberLeft     Type = "MEMBER_LEFT"
	TypeInviteReceived Type = "INVITE_RECEIVED"
	TypeInviteAccepted Type = "INVITE_ACCEPTED"

	// Payments
	TypePaymentReminder  Type = "PAYMENT_REMINDER"
	TypePaymentReceived  Type = "PAYMENT_RECEIVED"
	TypePaymentOverdue   Type = "PAYMENT_OVERDUE"
	TypePaymentFailed    Type = "PAYMENT_FAILED"
	TypePayoutScheduled  Type = "PAYOUT_SCHEDULED"
	TypePayoutSent       Type = "PAYOUT_SENT"
	TypeRoundStarted     Type = "ROUND_STARTED"
	TypeRoundCompleted   Type = "ROUND_COMPLETED"
	TypeEmergencyRequest Type = "EMERGENCY_REQUEST"
	TypeEmergencyFunded  Type = "EMERGENCY_FUNDED"

	// Account and platform
	TypeWalletLinked       Type = "WALLET_LINKED"
	TypeSystemAnnouncement Type = "SYSTEM_ANNOUNCEMENT"

	// TypeDigest is the synthetic kind used for batched digest sends. It
	// references its member notifications through the payload.
	TypeDigest Type = "NOTIFICATION_DIGEST"
)

// AllTypes lists every known notification type.
var AllTypes = []Type{
	TypePoolCreated, TypePoolStarted, TypePoolCompleted, TypePoolCancelled,
	TypeMemberJoined, TypeMemberLeft, TypeInviteReceived, TypeInviteAccepted,
	TypePaymentReminder, TypePaymentReceived, TypePaymentOverdue, TypePaymentFailed,
	TypePayoutScheduled, TypePayoutSent, TypeRoundStarted, TypeRoundCompleted,
	TypeEmergencyRequest, TypeEmergencyFunded,
	TypeWalletLinked, TypeSystemAnnouncement,
	TypeDigest,
}

// urgentTypes always bypass digest batching and quiet hours.
var urgentTypes = map[Type]struct{}{
	TypePaymentOverdue:   {},
	TypeEmergencyRequest: {},
	TypePoolCancelled:    {},
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Urgent reports whether notifications of this type must be delivered
// immediately regardless of digest or quiet-hours settings.
func (t Type) Urgent() bool {
	_, ok := urgentTypes[t]
	return ok
}

// Channel is a delivery medium for notifications.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// AllChannels lists every supported delivery channel.
var AllChannels = []Channel{ChannelEmail, ChannelPush, ChannelInApp}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelInApp:
		return true
	}
	return false
}
