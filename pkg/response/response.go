package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	chatErrors "sudooom.date.chat/internal/errors"
)

// PaymentRedirect 余额不足时客户端跳转的充值页面
const PaymentRedirect = "/payment"

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    chatErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    chatErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// ErrorWithMsg 参数错误等自定义消息
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError 从 AppError 生成错误响应；余额不足时附带充值跳转地址
func ErrorFromAppError(c *gin.Context, err error) {
	var data interface{}
	if chatErrors.Is(err, chatErrors.ErrInsufficientBalance) {
		data = gin.H{"redirect": PaymentRedirect}
	}

	c.JSON(chatErrors.HTTPStatus(err), Response{
		Code:    chatErrors.GetCode(err),
		Message: chatErrors.GetMessage(err),
		Data:    data,
	})
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context, err *chatErrors.AppError) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    err.Code,
		Message: err.Message,
		Data:    nil,
	})
}
