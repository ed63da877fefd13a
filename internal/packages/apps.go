package packages

// App is one entry of the static display-name table.
type App struct {
	Name    string
	Package string
}

// DefaultApps maps human-readable app names (English and Chinese aliases) to
// Android package names. Order matters for substring lookups.
var DefaultApps = []App{
	{"微信", "com.tencent.mm"},
	{"WeChat", "com.tencent.mm"},
	{"QQ", "com.tencent.mobileqq"},
	{"微博", "com.sina.weibo"},
	{"Weibo", "com.sina.weibo"},
	{"淘宝", "com.taobao.taobao"},
	{"Taobao", "com.taobao.taobao"},
	{"京东", "com.jingdong.app.mall"},
	{"JD", "com.jingdong.app.mall"},
	{"拼多多", "com.xunmeng.pinduoduo"},
	{"Pinduoduo", "com.xunmeng.pinduoduo"},
	{"美团", "com.sankuai.meituan"},
	{"Meituan", "com.sankuai.meituan"},
	{"饿了么", "me.ele"},
	{"支付宝", "com.eg.android.AlipayGphone"},
	{"Alipay", "com.eg.android.AlipayGphone"},
	{"小红书", "com.xingin.xhs"},
	{"Xiaohongshu", "com.xingin.xhs"},
	{"抖音", "com.ss.android.ugc.aweme"},
	{"Douyin", "com.ss.android.ugc.aweme"},
	{"快手", "com.smile.gifmaker"},
	{"哔哩哔哩", "tv.danmaku.bili"},
	{"Bilibili", "tv.danmaku.bili"},
	{"知乎", "com.zhihu.android"},
	{"Zhihu", "com.zhihu.android"},
	{"高德地图", "com.autonavi.minimap"},
	{"Amap", "com.autonavi.minimap"},
	{"百度地图", "com.baidu.BaiduMap"},
	{"大众点评", "com.dianping.v1"},
	{"携程", "ctrip.android.view"},
	{"Ctrip", "ctrip.android.view"},
	{"12306", "com.MobileTicket"},
	{"网易云音乐", "com.netease.cloudmusic"},
	{"QQ音乐", "com.tencent.qqmusic"},
	{"设置", "com.android.settings"},
	{"Settings", "com.android.settings"},
	{"相机", "com.android.camera"},
	{"Camera", "com.android.camera"},
	{"相册", "com.android.gallery3d"},
	{"Gallery", "com.android.gallery3d"},
	{"时钟", "com.android.deskclock"},
	{"Clock", "com.android.deskclock"},
	{"日历", "com.android.calendar"},
	{"Calendar", "com.android.calendar"},
	{"计算器", "com.android.calculator2"},
	{"Calculator", "com.android.calculator2"},
	{"联系人", "com.android.contacts"},
	{"Contacts", "com.android.contacts"},
	{"电话", "com.android.dialer"},
	{"Phone", "com.android.dialer"},
	{"短信", "com.android.mms"},
	{"Messages", "com.google.android.apps.messaging"},
	{"文件管理", "com.android.documentsui"},
	{"Files", "com.android.documentsui"},
	{"Chrome", "com.android.chrome"},
	{"Google", "com.google.android.googlequicksearchbox"},
	{"Gmail", "com.google.android.gm"},
	{"Google Maps", "com.google.android.apps.maps"},
	{"YouTube", "com.google.android.youtube"},
	{"Play Store", "com.android.vending"},
	{"Telegram", "org.telegram.messenger"},
	{"WhatsApp", "com.whatsapp"},
	{"Spotify", "com.spotify.music"},
}
