package awsinvoker

// Required input members per operation. The SDK validates these in
// unexported middleware, so they are restated here for pre-call checks.
var sqsRequired = map[string][]string{
	"AddPermission":                {"QueueUrl", "Label", "AWSAccountIds", "Actions"},
	"ChangeMessageVisibility":      {"QueueUrl", "ReceiptHandle", "VisibilityTimeout"},
	"ChangeMessageVisibilityBatch": {"QueueUrl", "Entries"},
	"CreateQueue":                  {"QueueName"},
	"DeleteMessage":                {"QueueUrl", "ReceiptHandle"},
	"DeleteMessageBatch":           {"QueueUrl", "Entries"},
	"DeleteQueue":                  {"QueueUrl"},
	"GetQueueAttributes":           {"QueueUrl"},
	"GetQueueUrl":                  {"QueueName"},
	"ListDeadLetterSourceQueues":   {"QueueUrl"},
	"ListQueueTags":                {"QueueUrl"},
	"PurgeQueue":                   {"QueueUrl"},
	"ReceiveMessage":               {"QueueUrl"},
	"RemovePermission":             {"QueueUrl", "Label"},
	"SendMessage":                  {"QueueUrl", "MessageBody"},
	"SendMessageBatch":             {"QueueUrl", "Entries"},
	"SetQueueAttributes":           {"QueueUrl", "Attributes"},
	"TagQueue":                     {"QueueUrl", "Tags"},
	"UntagQueue":                   {"QueueUrl", "TagKeys"},
}

var snsRequired = map[string][]string{
	"ConfirmSubscription":       {"TopicArn", "Token"},
	"CreateTopic":               {"Name"},
	"DeleteTopic":               {"TopicArn"},
	"GetSubscriptionAttributes": {"SubscriptionArn"},
	"GetTopicAttributes":        {"TopicArn"},
	"ListSubscriptionsByTopic":  {"TopicArn"},
	"Publish":                   {"Message"},
	"SetSubscriptionAttributes": {"SubscriptionArn", "AttributeName"},
	"SetTopicAttributes":        {"TopicArn", "AttributeName"},
	"Subscribe":                 {"TopicArn", "Protocol"},
	"Unsubscribe":               {"SubscriptionArn"},
}
