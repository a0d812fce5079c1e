package types

import "github.com/angelmondragon/purchasing-console/pkg/enums"

// Notice is a non-blocking message attached to a draft view, shown by the console as a toast.
type Notice struct {
	Level   enums.NoticeLevel `json:"level"`
	Code    enums.NoticeCode  `json:"code"`
	Message string            `json:"message"`
}

// Notices is an ordered list of notices.
type Notices []Notice

// Info appends an informational notice.
func (n Notices) Info(code enums.NoticeCode, message string) Notices {
	return append(n, Notice{Level: enums.NoticeLevelInfo, Code: code, Message: message})
}

// Warn appends a warning notice.
func (n Notices) Warn(code enums.NoticeCode, message string) Notices {
	return append(n, Notice{Level: enums.NoticeLevelWarning, Code: code, Message: message})
}
