package gate

// satireDomains is the curated blacklist of European satire and fake-news
// outlets whose drone headlines read exactly like real incident reports.
// Hosts are matched apex-down, so subdomains are covered.
var satireDomains = []string{
	// German-language
	"der-postillon.com",
	"titanic-magazin.de",
	"eine-zeitung.net",
	"dietagespresse.com",
	"nebelspalter.ch",
	// Nordic
	"rokokoposten.dk",
	"5080.no",
	"gronkopingsveckoblad.se",
	// Benelux
	"speld.nl",
	"nieuwspaal.nl",
	"nordpresse.be",
	// French
	"legorafi.fr",
	"secretnews.fr",
	// Southern Europe
	"elmundotoday.com",
	"haynoticia.es",
	"lercio.it",
	"inimigo.pt",
	"tokoulouri.com",
	// Central and Eastern Europe
	"aszdziennik.pl",
	"hircsarda.hu",
	"zaytung.com",
	"panorama.pub",
	// English-language
	"theonion.com",
	"babylonbee.com",
	"clickhole.com",
	"newsthump.com",
	"thedailymash.co.uk",
	"dailysquib.co.uk",
	"rochdaleherald.co.uk",
	"southendnewsnetwork.net",
	"newsbiscuit.com",
	"waterfordwhispersnews.com",
	"thebeaverton.com",
	"duffelblog.com",
	"thehardtimes.net",
	"reductress.com",
	"thepoke.co.uk",
	// Fake-news mills that recycle incident copy
	"worldnewsdailyreport.com",
	"empirenews.net",
	"nationalreport.net",
	"huzlers.com",
}
