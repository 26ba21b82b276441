package registry

import "time"

type Options struct {
	Listen         string
	TLS            *TLSOptions
	S3             *S3Options
	Local          *LocalFSOptions
	DB             *DBOptions
	EnableRedirect bool
	OIDC           *OIDCOptions
}

type TLSOptions struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

type OIDCOptions struct {
	Issuer string
}

type S3Options struct {
	URL           string        `json:"url,omitempty"`
	Region        string        `json:"region,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
	AccessKey     string        `json:"accessKey,omitempty"`
	SecretKey     string        `json:"secretKey,omitempty"`
	PresignExpire time.Duration `json:"presignExpire,omitempty"`
	Prefix        string        `json:"prefix,omitempty"`
}

func NewDefaultS3Options() *S3Options {
	return &S3Options{
		Bucket:        "zrc-repository",
		URL:           "",
		PresignExpire: time.Hour,
		Prefix:        "repository",
	}
}

type LocalFSOptions struct {
	Basepath string
}

func NewDefaultLocalFSOptions() *LocalFSOptions {
	return &LocalFSOptions{
		Basepath: "data/repository",
	}
}

type DBOptions struct {
	Path string
}

func NewDefaultDBOptions() *DBOptions {
	return &DBOptions{
		Path: "data/zrcd.db",
	}
}

func DefaultOptions() *Options {
	return &Options{
		Listen:         ":8080",
		TLS:            &TLSOptions{},
		S3:             NewDefaultS3Options(),
		Local:          NewDefaultLocalFSOptions(),
		DB:             NewDefaultDBOptions(),
		OIDC:           &OIDCOptions{},
		EnableRedirect: false,
	}
}
