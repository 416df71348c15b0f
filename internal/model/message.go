package model

type Kind string

const (
	KindSubscribe   Kind = "subscribe_to_topic"
	KindUnsubscribe Kind = "unsubscribe_from_topic"
	KindPublish     Kind = "publish_topic"
)

func (k Kind) String() string { return string(k) }

func (k Kind) Valid() bool {
	return k == KindSubscribe || k == KindUnsubscribe || k == KindPublish
}

// Lane is the queue lane a kind travels on.
type Lane string

const (
	LaneSubscriptions Lane = "subscriptions"
	LaneNotifications Lane = "notifications"
)

func (l Lane) String() string { return string(l) }

func (l Lane) Valid() bool {
	return l == LaneSubscriptions || l == LaneNotifications
}

// ParseLane normalizes a lane name coming from the CLI.
func ParseLane(s string) (Lane, bool) {
	l := Lane(s)
	return l, l.Valid()
}

func (k Kind) Lane() Lane {
	if k == KindPublish {
		return LaneNotifications
	}
	return LaneSubscriptions
}

// Message is a queued unit of deferred work. Implementations are plain values.
type Message interface {
	Kind() Kind
	// PartitionKey groups related messages on the same queue partition.
	PartitionKey() string
}

type SubscribeToTopic struct {
	UserID int64  `json:"user_id"`
	Topic  string `json:"topic"`
}

func NewSubscribeToTopic(userID int64, topic string) SubscribeToTopic {
	return SubscribeToTopic{UserID: userID, Topic: topic}
}

func (SubscribeToTopic) Kind() Kind             { return KindSubscribe }
func (m SubscribeToTopic) PartitionKey() string { return m.Topic }

type UnsubscribeFromTopic struct {
	UserID int64  `json:"user_id"`
	Topic  string `json:"topic"`
}

func NewUnsubscribeFromTopic(userID int64, topic string) UnsubscribeFromTopic {
	return UnsubscribeFromTopic{UserID: userID, Topic: topic}
}

func (UnsubscribeFromTopic) Kind() Kind             { return KindUnsubscribe }
func (m UnsubscribeFromTopic) PartitionKey() string { return m.Topic }

// PublishTopic asks for one email per subscriber of Topic. Body is HTML.
type PublishTopic struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewPublishTopic(topic, subject, body string) PublishTopic {
	return PublishTopic{Topic: topic, Subject: subject, Body: body}
}

func (PublishTopic) Kind() Kind             { return KindPublish }
func (m PublishTopic) PartitionKey() string { return m.Topic }
