package tunnel

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-tun/conf"
)

type Option func(o *Options)

type Options struct {
	conf   conf.Config
	logger log.Logger
}

func newOptions(opts ...Option) Options {
	o := Options{
		conf:   conf.Default(),
		logger: log.DefaultLogger,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func WithConf(cfg conf.Config) Option {
	return func(o *Options) {
		o.conf = cfg
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}
