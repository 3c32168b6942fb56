package aws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryServer records the form of each AWS query-protocol request and
// answers with body.
type queryServer struct {
	mu    sync.Mutex
	forms []url.Values
	body  string
}

func (q *queryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(data))
	q.mu.Lock()
	q.forms = append(q.forms, form)
	q.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	_, _ = io.WriteString(w, q.body)
}

func (q *queryServer) last() url.Values {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.forms[len(q.forms)-1]
}

func TestSNSClient_SendSMS(t *testing.T) {
	qs := &queryServer{body: `<PublishResponse xmlns="http://sns.amazonaws.com/doc/2010-03-31/">
  <PublishResult><MessageId>m-1</MessageId></PublishResult>
</PublishResponse>`}
	srv := httptest.NewServer(qs)
	defer srv.Close()

	client := &SNSClient{
		client: sns.New(sns.Options{
			Region:           "ap-south-1",
			Credentials:      aws.AnonymousCredentials{},
			EndpointResolver: sns.EndpointResolverFromURL(srv.URL),
		}),
		senderID: "CAKESHOP",
	}

	require.NoError(t, client.SendSMS(context.Background(), "+919800000000", "Order ORD-1 assigned"))

	form := qs.last()
	assert.Equal(t, "Publish", form.Get("Action"))
	assert.Equal(t, "+919800000000", form.Get("PhoneNumber"))
	assert.Equal(t, "Order ORD-1 assigned", form.Get("Message"))

	attrs := map[string]string{}
	for i := 1; i <= 2; i++ {
		prefix := "MessageAttributes.entry." + strconv.Itoa(i)
		attrs[form.Get(prefix+".Name")] = form.Get(prefix + ".Value.StringValue")
	}
	assert.Equal(t, "Transactional", attrs["AWS.SNS.SMS.SMSType"])
	assert.Equal(t, "CAKESHOP", attrs["AWS.SNS.SMS.SenderID"])
}

func TestSESClient_SendEmail(t *testing.T) {
	qs := &queryServer{body: `<SendEmailResponse xmlns="http://ses.amazonaws.com/doc/2010-12-01/">
  <SendEmailResult><MessageId>e-1</MessageId></SendEmailResult>
</SendEmailResponse>`}
	srv := httptest.NewServer(qs)
	defer srv.Close()

	client := &SESClient{client: ses.New(ses.Options{
		Region:           "ap-south-1",
		Credentials:      aws.AnonymousCredentials{},
		EndpointResolver: ses.EndpointResolverFromURL(srv.URL),
	})}

	out, err := client.SendEmail(context.Background(), &ses.SendEmailInput{
		Source:      aws.String("orders@cakeshop.local"),
		Destination: &sestypes.Destination{ToAddresses: []string{"ravi@cakeshop.local"}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("New order")},
			Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String("ORD-1")}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "e-1", aws.ToString(out.MessageId))
	assert.Equal(t, "SendEmail", qs.last().Get("Action"))
}
