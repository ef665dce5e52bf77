package notifier

// TextNotifier 文本消息出口。
type TextNotifier interface {
	SendText(text string) error
}

// Nop 丢弃所有消息，用于未配置通知渠道的场景。
type Nop struct{}

func (Nop) SendText(string) error { return nil }
