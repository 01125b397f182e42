package response

type Resp struct {
	Code   int      `json:"code"`
	Msg    string   `json:"msg"`
	Data   any      `json:"data"`
	Errors []string `json:"errors,omitempty"` // 字段级校验信息
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

// OK 成功响应
func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

func (r Resp) WithErrors(errs []string) Resp {
	r.Errors = errs
	return r
}
