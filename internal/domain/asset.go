package domain

// StaticAsset 是爬虫从站点下载到的一个静态资源（css/js/图片等）。
//
// 约束：
// - URL 是身份：同一 URL 在一次爬取中只会出现一次
// - Content 只用于计算指纹，之后即可丢弃
type StaticAsset struct {
	URL         string
	Content     []byte
	ContentType string
}
