package container

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrFeedNotRegistered 错误：配置的交易所行情源没有注册
var ErrFeedNotRegistered = errors.New("exchange feed not registered")

// ErrRedisRequired 错误：redis 报价源需要启用 redis
var ErrRedisRequired = errors.New("redis server quote source requires redis storage")
