package util

type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

// ErrorWithCode adds the stable error kind clients can switch on.
func ErrorWithCode(message, code string) Envelope {
	return Envelope{"error": message, "code": code}
}

func Data(key string, value any) Envelope {
	return Envelope{key: value}
}
