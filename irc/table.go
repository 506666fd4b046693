package irc

import (
	"strings"
)

// The verb/numeric table maps wire commands to canonical event names
// and declares which named attributes an event extracts from its
// parameters. It is initialized once and read-only while connections
// run; RegisterNumeric and RegisterEventParams may extend it before the
// first connection starts, never concurrently with active dispatch.

// numericEvents maps numeric replies to event names.
// Adapted from the irc2numerics list; IRCv3 meanings win over
// historical collisions.
var numericEvents = map[string]string{
	"001": "welcome",
	"002": "yourhost",
	"003": "created",
	"004": "myinfo",
	"005": "features",
	"010": "bounce",
	"042": "yourid",
	"212": "statscommands",
	"219": "endofstats",
	"221": "umodeis",
	"242": "statsuptime",
	"251": "luserclient",
	"252": "luserop",
	"253": "luserunknown",
	"254": "luserchannels",
	"255": "luserme",
	"256": "adminme",
	"257": "adminloc1",
	"258": "adminloc2",
	"259": "adminemail",
	"263": "tryagain",
	"265": "localusers",
	"266": "globalusers",
	"276": "whoiscertfp",
	"300": "none",
	"301": "away",
	"302": "userhost",
	"303": "ison",
	"305": "unaway",
	"306": "nowaway",
	"307": "whoisregnick",
	"311": "whoisuser",
	"312": "whoisserver",
	"313": "whoisoperator",
	"314": "whowasuser",
	"315": "endofwho",
	"317": "whoisidle",
	"318": "endofwhois",
	"319": "whoischannels",
	"320": "whoisspecial",
	"321": "liststart",
	"322": "list",
	"323": "listend",
	"324": "cmodeis",
	"329": "chancreatetime",
	"330": "whoisaccount",
	"331": "notopic",
	"332": "topic",
	"333": "topicwhotime",
	"336": "invitelist",
	"337": "endofinvitelist",
	"338": "whoisactually",
	"341": "inviting",
	"346": "invexlist",
	"347": "endofinvexlist",
	"348": "exceptlist",
	"349": "endofexceptlist",
	"351": "version",
	"352": "whoreply",
	"353": "namreply",
	"354": "whospcrpl",
	"364": "links",
	"365": "endoflinks",
	"366": "endofnames",
	"367": "banlist",
	"368": "endofbanlist",
	"369": "endofwhowas",
	"371": "info",
	"372": "motd",
	"374": "endofinfo",
	"375": "motdstart",
	"376": "endofmotd",
	"378": "whoishost",
	"379": "whoismodes",
	"381": "youreoper",
	"382": "rehashing",
	"391": "time",
	"396": "hosthidden",
	"400": "unknownerror",
	"401": "nosuchnick",
	"402": "nosuchserver",
	"403": "nosuchchannel",
	"404": "cannotsendtochan",
	"405": "toomanychannels",
	"406": "wasnosuchnick",
	"407": "toomanytargets",
	"408": "nosuchservice",
	"409": "noorigin",
	"410": "invalidcapcmd",
	"411": "norecipient",
	"412": "notexttosend",
	"417": "inputtoolong",
	"421": "unknowncommand",
	"422": "nomotd",
	"431": "nonicknamegiven",
	"432": "erroneusnickname",
	"433": "nicknameinuse",
	"436": "nickcollision",
	"439": "targettoofast",
	"441": "usernotinchannel",
	"442": "notonchannel",
	"443": "useronchannel",
	"451": "notregistered",
	"461": "needmoreparams",
	"462": "alreadyregistered",
	"464": "passwdmismatch",
	"465": "yourebannedcreep",
	"467": "keyset",
	"471": "channelisfull",
	"472": "unknownmode",
	"473": "inviteonlychan",
	"474": "bannedfromchan",
	"475": "badchannelkey",
	"476": "badchanmask",
	"478": "banlistfull",
	"481": "noprivileges",
	"482": "chanoprivsneeded",
	"483": "cantkillserver",
	"501": "umodeunknownflag",
	"502": "usersdontmatch",
	"524": "helpnotfound",
	"671": "whoissecure",
	"704": "helpstart",
	"705": "helptxt",
	"706": "endofhelp",
	"710": "knock",
	"730": "mononline",
	"731": "monoffline",
	"732": "monlist",
	"733": "endofmonlist",
	"734": "monlistfull",
	"900": "loggedin",
	"901": "loggedout",
	"902": "nicklocked",
	"903": "saslsuccess",
	"904": "saslfail",
	"905": "sasltoolong",
	"906": "saslaborted",
	"907": "saslalready",
	"908": "saslmechs",
	"999": "numericerror",
}

// A ParamRule declares one named attribute of an event and where in the
// parameter list its value comes from.
type ParamRule struct {
	Attr  string
	Index int
	// Rest joins the parameters from Index onwards with spaces.
	Rest bool
	// Escaped runs the value through the formatting Escape before it
	// is exposed.
	Escaped bool
}

// eventParams declares the named attributes per event name.
var eventParams = map[string][]ParamRule{
	"privmsg":    {{Attr: "target", Index: 0}, {Attr: "message", Index: 1, Escaped: true}},
	"pubmsg":     {{Attr: "target", Index: 0}, {Attr: "message", Index: 1, Escaped: true}},
	"privnotice": {{Attr: "target", Index: 0}, {Attr: "message", Index: 1, Escaped: true}},
	"pubnotice":  {{Attr: "target", Index: 0}, {Attr: "message", Index: 1, Escaped: true}},
	"ctcp":       {{Attr: "target", Index: 0}},
	"ctcp_reply": {{Attr: "target", Index: 0}},
	"umode":      {{Attr: "target", Index: 0}},
	"cmode":      {{Attr: "target", Index: 0}, {Attr: "channel", Index: 0}},
	"cmodeis":    {{Attr: "target", Index: 1}, {Attr: "channel", Index: 1}},
	"nick":       {{Attr: "new_nick", Index: 0}},
	"welcome":    {{Attr: "nick", Index: 0}, {Attr: "message", Index: 1, Escaped: true, Rest: true}},
	"kick":       {{Attr: "channel", Index: 0}, {Attr: "user", Index: 1}, {Attr: "message", Index: 2, Escaped: true}},
	"join":       {{Attr: "channels", Index: 0}},
	"part":       {{Attr: "channels", Index: 0}, {Attr: "message", Index: 1, Escaped: true}},
	"quit":       {{Attr: "message", Index: 0, Escaped: true}},
	"topic":      {{Attr: "channel", Index: 0}, {Attr: "topic", Index: 1}},
	"namreply":   {{Attr: "channel", Index: 2}, {Attr: "names", Index: 3}},
	"endofnames": {{Attr: "channel", Index: 1}},
	// numerics carry the client nick as params[0]
	"chancreatetime":   {{Attr: "channel", Index: 1}, {Attr: "timestamp", Index: 2}},
	"cannotsendtochan": {{Attr: "channel", Index: 1}, {Attr: "message", Index: 2, Escaped: true}},
	"info":       {{Attr: "message", Index: 1, Escaped: true}},
	"endofinfo":  {{Attr: "message", Index: 1, Escaped: true}},
	"motdstart":  {{Attr: "message", Index: 1, Escaped: true}},
	"motd":       {{Attr: "message", Index: 1, Escaped: true}},
	"endofmotd":  {{Attr: "message", Index: 1, Escaped: true}},
	"youreoper":  {{Attr: "message", Index: 1, Escaped: true}},
	"adminloc1":  {{Attr: "message", Index: 1, Escaped: true}},
	"adminloc2":  {{Attr: "message", Index: 1, Escaped: true}},
	"adminemail": {{Attr: "message", Index: 1, Escaped: true}},
	"nosuchnick": {{Attr: "nick", Index: 1}, {Attr: "message", Index: 2, Escaped: true}},
	"ping":       {{Attr: "token", Index: 0}},
	"pong":       {{Attr: "token", Index: 1}},
}

// EventName returns the canonical event name for a wire command:
// numerics go through the numeric table, verbs fold to lowercase.
func EventName(command string) string {
	if name, ok := numericEvents[command]; ok {
		return name
	}
	return strings.ToLower(command)
}

// NumericName returns the event name registered for a numeric code.
func NumericName(code string) (string, bool) {
	name, ok := numericEvents[code]
	return name, ok
}

// EventParams returns the declared named attributes of an event name,
// for introspection and generic extraction. The returned slice must not
// be modified.
func EventParams(name string) []ParamRule {
	return eventParams[name]
}

// RegisterNumeric maps a numeric code to an event name. Call before
// any connection starts.
func RegisterNumeric(code, name string) {
	numericEvents[code] = name
}

// RegisterEventParams declares the named attributes of an event name.
// Call before any connection starts.
func RegisterEventParams(name string, rules ...ParamRule) {
	eventParams[name] = rules
}

// ExtractParams applies the table's rules for an event name to a
// message and returns the named attribute values.
func ExtractParams(name string, msg Message) map[string]string {
	rules := eventParams[name]
	if len(rules) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(rules))
	for _, r := range rules {
		if r.Index >= len(msg.Params) {
			continue
		}
		value := msg.Params[r.Index]
		if r.Rest {
			value = strings.Join(msg.Params[r.Index:], " ")
		}
		if r.Escaped {
			value = Escape(value)
		}
		attrs[r.Attr] = value
	}
	return attrs
}
