package kvstore

// Key prefixes for the persistent store. Everything a repository owns lives
// under its prefix so ScanByPrefix enumerates it.
const (
	// prefixContent is the prefix for content items (content:{type}:{id})
	prefixContent = "content:"

	// prefixComment is the prefix for item comments (comment:{itemID}:{id})
	prefixComment = "comment:"

	// prefixNotif is the prefix for notification records (notif:{userID}:{id})
	prefixNotif = "notif:"

	// prefixPref is the prefix for notification preferences (pref:{userID})
	prefixPref = "pref:"

	// prefixSub is the prefix for push subscriptions (sub:{userID}:{endpointID})
	prefixSub = "sub:"

	// prefixUser is the prefix for users by id (user:id:{id})
	prefixUserID = "user:id:"

	// prefixUserEmail maps email -> user id (user:email:{email})
	prefixUserEmail = "user:email:"
)
