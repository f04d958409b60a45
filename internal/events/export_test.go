package events

var NewKafkaPublisherWithWriter = newKafkaPublisher
